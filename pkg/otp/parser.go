// Package otp fetches one-time codes from the notifications service and extracts them from SMS texts.
package otp

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Kind is the operation an SMS code confirms.
type Kind string

// Operation kinds.
const (
	KindLogin             Kind = "LOGIN"
	KindSignDocuments     Kind = "SIGN_DOCUMENTS"
	KindCloseDeposit      Kind = "CLOSE_DEPOSIT"
	KindPayment           Kind = "PAYMENT"
	KindChangeCardPinCode Kind = "CHANGE_CARD_PIN_CODE"
	KindChangeSMSTariff   Kind = "CHANGE_SMS_TARIFF"
)

// codeGroup is the capture group holding the code in every pattern.
const codeGroup = "sms_code"

// ErrCodeNotFound is returned when no message matches the kind's pattern.
var ErrCodeNotFound = errors.New("no message matches the pattern")

var patterns = map[Kind]string{
	KindLogin:             `AKBARS Для входа введите код. Не сообщайте его никому: (?P<sms_code>\d{5})`,
	KindSignDocuments:     `(?P<sms_code>\d{5}) - ваш код для подтверждения подписания документов. Не сообщайте его никому.`,
	KindCloseDeposit:      `Для закрытия вклада введите код: (?P<sms_code>\d{5}). Не сообщайте его никому`,
	KindPayment:           `(?P<sms_code>\d{5}) - ваш код для подтверждения платежа.*`,
	KindChangeCardPinCode: `Для подтверждения смены пинкода введите код (?P<sms_code>\d{5})`,
	KindChangeSMSTariff:   `Для подключения пакета .+ введите код. Не сообщайте его никому: (?P<sms_code>\d{5})`,
}

// compiled patterns are anchored so a match covers the whole message.
var compiled = func() map[Kind]*regexp.Regexp {
	m := make(map[Kind]*regexp.Regexp, len(patterns))
	for k, p := range patterns {
		m[k] = regexp.MustCompile(`^(?:` + p + `)$`)
	}
	return m
}()

// Kinds lists every supported operation kind.
func Kinds() []Kind {
	return []Kind{KindLogin, KindSignDocuments, KindCloseDeposit, KindPayment, KindChangeCardPinCode, KindChangeSMSTariff}
}

// ParseKind converts a name such as "login" or "CLOSE_DEPOSIT" into a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_")))
	if _, ok := patterns[k]; !ok {
		return "", fmt.Errorf("unknown operation kind %q", s)
	}
	return k, nil
}

// Pattern returns the raw pattern for a kind.
func (k Kind) Pattern() string {
	return patterns[k]
}

// Message is one record returned by the notifications service.
type Message struct {
	Message string `json:"message"`
}

// Parser extracts codes from a notifications response.
type Parser struct {
	messages []Message
}

// NewParser wraps a list of message records.
func NewParser(messages []Message) *Parser {
	return &Parser{messages: messages}
}

// Messages returns the wrapped records.
func (p *Parser) Messages() []Message {
	return p.messages
}

// Code scans the records in order and returns the code from the first one
// whose text fully matches the kind's pattern.
func (p *Parser) Code(kind Kind) (string, error) {
	re, ok := compiled[kind]
	if !ok {
		return "", fmt.Errorf("unknown operation kind %q", kind)
	}
	idx := re.SubexpIndex(codeGroup)
	for _, m := range p.messages {
		if match := re.FindStringSubmatch(m.Message); match != nil {
			return match[idx], nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrCodeNotFound, patterns[kind])
}

// LoginCode returns the code confirming login.
func (p *Parser) LoginCode() (string, error) { return p.Code(KindLogin) }

// SignDocumentsCode returns the code confirming a document signature.
func (p *Parser) SignDocumentsCode() (string, error) { return p.Code(KindSignDocuments) }

// CloseDepositCode returns the code confirming a deposit closure.
func (p *Parser) CloseDepositCode() (string, error) { return p.Code(KindCloseDeposit) }

// PaymentCode returns the code confirming a payment.
func (p *Parser) PaymentCode() (string, error) { return p.Code(KindPayment) }

// ChangePinCode returns the code confirming a card PIN change.
func (p *Parser) ChangePinCode() (string, error) { return p.Code(KindChangeCardPinCode) }

// ChangeSMSTariffCode returns the code confirming an SMS tariff change.
func (p *Parser) ChangeSMSTariffCode() (string, error) { return p.Code(KindChangeSMSTariff) }
