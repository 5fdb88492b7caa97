package otp

import (
	"errors"
	"strings"
	"testing"
)

func TestParserCode(t *testing.T) {
	tests := []struct {
		kind    Kind
		message string
		want    string
	}{
		{KindLogin, "AKBARS Для входа введите код. Не сообщайте его никому: 12345", "12345"},
		{KindSignDocuments, "54321 - ваш код для подтверждения подписания документов. Не сообщайте его никому.", "54321"},
		{KindCloseDeposit, "Для закрытия вклада введите код: 11223. Не сообщайте его никому", "11223"},
		{KindPayment, "99887 - ваш код для подтверждения платежа на сумму 100 р.", "99887"},
		{KindChangeCardPinCode, "Для подтверждения смены пинкода введите код 24680", "24680"},
		{KindChangeSMSTariff, "Для подключения пакета Экономный введите код. Не сообщайте его никому: 13579", "13579"},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			p := NewParser([]Message{{Message: "unrelated"}, {Message: tt.message}})
			got, err := p.Code(tt.kind)
			if err != nil {
				t.Fatalf("Code() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Code() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParserFirstMatchWins(t *testing.T) {
	p := NewParser([]Message{
		{Message: "AKBARS Для входа введите код. Не сообщайте его никому: 11111"},
		{Message: "AKBARS Для входа введите код. Не сообщайте его никому: 22222"},
	})
	got, err := p.LoginCode()
	if err != nil || got != "11111" {
		t.Errorf("LoginCode() = %q, %v; want 11111", got, err)
	}
}

func TestParserRequiresFullMatch(t *testing.T) {
	tests := []struct {
		name    string
		message string
	}{
		{"prefix text", "Внимание! AKBARS Для входа введите код. Не сообщайте его никому: 12345"},
		{"trailing text", "AKBARS Для входа введите код. Не сообщайте его никому: 12345 "},
		{"six digits", "AKBARS Для входа введите код. Не сообщайте его никому: 123456"},
		{"four digits", "AKBARS Для входа введите код. Не сообщайте его никому: 1234"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewParser([]Message{{Message: tt.message}})
			_, err := p.LoginCode()
			if !errors.Is(err, ErrCodeNotFound) {
				t.Errorf("LoginCode() error = %v, want ErrCodeNotFound", err)
			}
		})
	}
}

func TestParserNotFoundNamesPattern(t *testing.T) {
	p := NewParser(nil)
	_, err := p.CloseDepositCode()
	if !errors.Is(err, ErrCodeNotFound) {
		t.Fatalf("error = %v, want ErrCodeNotFound", err)
	}
	if !strings.Contains(err.Error(), KindCloseDeposit.Pattern()) {
		t.Errorf("error %q does not name the pattern", err)
	}
}

func TestParserKindsAreDistinct(t *testing.T) {
	p := NewParser([]Message{{Message: "Для подтверждения смены пинкода введите код 24680"}})
	if _, err := p.LoginCode(); !errors.Is(err, ErrCodeNotFound) {
		t.Errorf("LoginCode() error = %v, want ErrCodeNotFound", err)
	}
	if code, err := p.ChangePinCode(); err != nil || code != "24680" {
		t.Errorf("ChangePinCode() = %q, %v", code, err)
	}
	if _, err := p.SignDocumentsCode(); err == nil {
		t.Error("SignDocumentsCode() matched a PIN message")
	}
	if _, err := p.PaymentCode(); err == nil {
		t.Error("PaymentCode() matched a PIN message")
	}
	if _, err := p.ChangeSMSTariffCode(); err == nil {
		t.Error("ChangeSMSTariffCode() matched a PIN message")
	}
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		in      string
		want    Kind
		wantErr bool
	}{
		{"login", KindLogin, false},
		{"CLOSE_DEPOSIT", KindCloseDeposit, false},
		{"change-card-pin-code", KindChangeCardPinCode, false},
		{"transfer", "", true},
	}
	for _, tt := range tests {
		got, err := ParseKind(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseKind(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseKind(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
	if len(Kinds()) != 6 {
		t.Errorf("Kinds() = %d entries, want 6", len(Kinds()))
	}
}
