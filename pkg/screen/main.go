package screen

import (
	"context"
	"fmt"
	"time"

	"github.com/citizencard-qa/autotests-mobile/pkg/core"
	"github.com/citizencard-qa/autotests-mobile/pkg/logger"
)

// Input pacing used by the main screen flows.
const (
	DefaultLoginDelay = 4 * time.Second
	DefaultKeyDelay   = 100 * time.Millisecond
	cityInputDelay    = 2 * time.Second
	cityChangeDelay   = 3 * time.Second
	appCodeDigits     = 4
)

// Delivery methods accepted by HowToGetCard.
const (
	MethodBank    = "bank"
	MethodCourier = "courier"
)

// Address variants accepted by ValidateInputDeliveryAddress.
const (
	AddressValid   = "valid"
	AddressInvalid = "invalid"
)

// OTPSource supplies the one-time login code sent to a phone.
type OTPSource interface {
	LoginCode(ctx context.Context, phone string) (string, error)
}

// Main is the main screen of the application: login and card issuance.
type Main struct {
	*Base
	L   Locators
	otp OTPSource

	LoginDelay time.Duration
	KeyDelay   time.Duration
}

// NewMain creates the main screen over base.
func NewMain(base *Base, loc Locators, otp OTPSource) *Main {
	return &Main{
		Base:       base,
		L:          loc,
		otp:        otp,
		LoginDelay: DefaultLoginDelay,
		KeyDelay:   DefaultKeyDelay,
	}
}

// waitEnabled waits for the element the way every flow step does before touching it.
func (m *Main) waitEnabled(ctx context.Context, loc Locator) error {
	_, err := m.ElementIsEnabled(ctx, loc, 0)
	return err
}

func (m *Main) text(ctx context.Context, loc Locator) (string, error) {
	return m.GetText(ctx, loc, 0)
}

// closeIfPresent clicks the close button when marker is on screen.
func (m *Main) closeIfPresent(ctx context.Context, marker Locator) (bool, error) {
	present, err := m.IsPresent(ctx, marker, 0)
	if err != nil || !present {
		return false, err
	}
	if err := m.Click(ctx, m.L.ButtonClose, 0); err != nil {
		return false, err
	}
	return true, nil
}

// CheckAndCloseUpdatePopup closes the "update the application" popup.
// When it is missing, the back key closes a WebView that may cover it and the check repeats.
func (m *Main) CheckAndCloseUpdatePopup(ctx context.Context) error {
	logger.Info("Looking for the update popup")
	closed, err := m.closeIfPresent(ctx, m.L.TextUpdateApp)
	if err != nil {
		return err
	}
	if closed {
		logger.Info("Update popup closed")
		return nil
	}

	logger.Info("Update popup not found, pressing back to leave WebView")
	if err := m.Back(ctx); err != nil {
		logger.Warn("Failed to close WebView: %v", err)
	}

	closed, err = m.closeIfPresent(ctx, m.L.TextUpdateApp)
	if err != nil {
		return err
	}
	if closed {
		logger.Info("Update popup closed after leaving WebView")
	} else {
		logger.Info("Update popup not found after leaving WebView, continuing")
	}
	return nil
}

// AssertHomeScreenIsOpen checks that the login button is on screen.
func (m *Main) AssertHomeScreenIsOpen(ctx context.Context) error {
	button, err := m.text(ctx, m.L.ButtonLoginViaAkBars)
	if err != nil {
		return err
	}
	logger.Info("Login button %q found", button)
	return nil
}

// LoginViaPhone signs in through the bank: phone, SMS code, password and app code.
func (m *Main) LoginViaPhone(ctx context.Context, phone, password string) error {
	if err := m.waitEnabled(ctx, m.L.ButtonLoginViaAkBars); err != nil {
		return err
	}
	if err := m.Click(ctx, m.L.ButtonLoginViaAkBars, 0); err != nil {
		return err
	}
	if err := m.Pause(ctx, m.LoginDelay); err != nil {
		return err
	}

	// The emulator merges fast input into one chunk and drops characters.
	if err := m.TypeKeys(ctx, phone, m.KeyDelay); err != nil {
		return err
	}
	if err := m.PressEnter(ctx); err != nil {
		return err
	}

	code, err := m.otp.LoginCode(ctx, phone)
	if err != nil {
		return fmt.Errorf("login code for %s: %w", phone, err)
	}
	if err := m.Driver().SendKeys(code); err != nil {
		return fmt.Errorf("type login code: %w", err)
	}

	if err := m.SwitchToWebView(ctx); err != nil {
		return err
	}
	if err := m.waitEnabled(ctx, m.L.TabLoginByPassword); err != nil {
		return err
	}
	if err := m.AssertText(ctx, m.L.TabLoginByPassword, TextByPasswordTab); err != nil {
		return err
	}
	logger.Info("Tab %q found", TextByPasswordTab)
	if err := m.ClickWebView(ctx, m.L.TabLoginByPassword, 0); err != nil {
		return err
	}
	if err := m.waitEnabled(ctx, m.L.FieldPassword); err != nil {
		return err
	}
	if err := m.EnterTextInWebView(ctx, m.L.FieldPassword, password, 0); err != nil {
		return err
	}
	if err := m.PressEnter(ctx); err != nil {
		return err
	}
	if err := m.SwitchToNative(ctx); err != nil {
		return err
	}

	if err := m.waitEnabled(ctx, m.L.TextAddCode); err != nil {
		return err
	}
	if err := m.AssertTextContains(ctx, m.L.TextAddCode, TextSetAppCode); err != nil {
		return err
	}
	if err := m.enterAppCode(ctx); err != nil {
		return err
	}
	if err := m.waitEnabled(ctx, m.L.TextAddCode); err != nil {
		return err
	}
	if err := m.AssertText(ctx, m.L.TextAddCode, TextRepeatAppCode); err != nil {
		return err
	}
	if err := m.enterAppCode(ctx); err != nil {
		return err
	}
	logger.Info("Logged in as %s", phone)
	return nil
}

// enterAppCode taps 1 four times, which sets the app code 1111.
func (m *Main) enterAppCode(ctx context.Context) error {
	for i := 0; i < appCodeDigits; i++ {
		if err := m.Click(ctx, m.L.Button1, 0); err != nil {
			return err
		}
	}
	return nil
}

// CheckAndClosePayParkingPopup closes the "pay parking" promo popup when shown.
func (m *Main) CheckAndClosePayParkingPopup(ctx context.Context) error {
	logger.Info("Looking for the pay parking popup")
	closed, err := m.closeIfPresent(ctx, m.L.TextPayParking)
	if err != nil {
		return err
	}
	if closed {
		logger.Info("Pay parking popup closed")
	} else {
		logger.Info("Pay parking popup not found, continuing")
	}
	return nil
}

// IssueCard starts card issuance from the home screen.
func (m *Main) IssueCard(ctx context.Context) error {
	if err := m.waitEnabled(ctx, m.L.TextIssueCard); err != nil {
		return err
	}
	if err := m.AssertText(ctx, m.L.TextIssueCard, TextIssueCardButton); err != nil {
		return err
	}
	logger.Info("Button %q found", TextIssueCardButton)
	return m.Click(ctx, m.L.ButtonConfirm, 0)
}

// IssuePlasticCard picks the plastic card type.
func (m *Main) IssuePlasticCard(ctx context.Context) error {
	return m.chooseCardType(ctx)
}

// IssueDigitalCard picks the card type link on the same popup.
func (m *Main) IssueDigitalCard(ctx context.Context) error {
	return m.chooseCardType(ctx)
}

func (m *Main) chooseCardType(ctx context.Context) error {
	if err := m.waitEnabled(ctx, m.L.TextOrderResidentCard); err != nil {
		return err
	}
	header, err := m.text(ctx, m.L.TextOrderResidentCard)
	if err != nil {
		return err
	}
	logger.Info("Popup %q opened", header)
	if err := m.waitEnabled(ctx, m.L.LinkIssuePlasticCard); err != nil {
		return err
	}
	return m.Click(ctx, m.L.LinkIssuePlasticCard, 0)
}

// ApplyPlasticCard confirms the plastic card application and lands on card issuance.
func (m *Main) ApplyPlasticCard(ctx context.Context) error {
	if err := m.waitEnabled(ctx, m.L.TextApplyCard); err != nil {
		return err
	}
	if err := m.AssertText(ctx, m.L.TextApplyCard, TextApplyCardButton); err != nil {
		return err
	}
	logger.Info("Button %q found", TextApplyCardButton)
	if err := m.Click(ctx, m.L.ButtonConfirm, 0); err != nil {
		return err
	}
	return m.AssertText(ctx, m.L.TextCardIssuance, TextCardIssuance)
}

// InputDeliveryCity types a city and checks it is offered in the list.
func (m *Main) InputDeliveryCity(ctx context.Context, city string) error {
	if city == "" {
		city = DefaultDeliveryCity
	}
	if err := m.AssertText(ctx, m.L.TextCardIssuance, TextCardIssuance); err != nil {
		return err
	}
	logger.Info("Screen %q opened", TextCardIssuance)
	if err := m.SendKeys(ctx, m.L.FieldCity, city, 0, cityInputDelay); err != nil {
		return err
	}
	if err := m.waitEnabled(ctx, m.L.TextCityInList); err != nil {
		return err
	}
	return m.AssertTextContains(ctx, m.L.TextCityInList, city)
}

// InputDeliveryInvalidCity types a city without delivery and checks the notice.
func (m *Main) InputDeliveryInvalidCity(ctx context.Context, city string) error {
	if city == "" {
		city = DefaultInvalidCity
	}
	if err := m.AssertText(ctx, m.L.TextCardIssuance, TextCardIssuance); err != nil {
		return err
	}
	logger.Info("Screen %q opened", TextCardIssuance)
	if err := m.SendKeys(ctx, m.L.FieldCity, city, 0, 0); err != nil {
		return err
	}
	return m.AssertText(ctx, m.L.NoticeCannotDeliverCard, NoticeCannotDeliverCard)
}

// SelectDeliveryOption picks the first city in the list and opens delivery options.
func (m *Main) SelectDeliveryOption(ctx context.Context) error {
	if err := m.Click(ctx, m.L.LinkCityInList, 0); err != nil {
		return err
	}
	if err := m.AssertText(ctx, m.L.TextNextButton, TextNext); err != nil {
		return err
	}
	if err := m.Click(ctx, m.L.ButtonConfirm, 0); err != nil {
		return err
	}
	return m.AssertText(ctx, m.L.TextReceipt, TextReceipt)
}

// ReceiveCardByCourier chooses courier delivery.
func (m *Main) ReceiveCardByCourier(ctx context.Context) error {
	return m.chooseReceipt(ctx, m.L.ButtonByCourier, m.L.TextAddressToReceiveCard, NoticeAddressToReceiveCard)
}

// ReceiveCardFromBank chooses pickup at a bank branch.
func (m *Main) ReceiveCardFromBank(ctx context.Context) error {
	return m.chooseReceipt(ctx, m.L.ButtonByBank, m.L.TextAddressOfBankBranch, NoticeAddressOfBankBranch)
}

func (m *Main) chooseReceipt(ctx context.Context, option, field Locator, label string) error {
	if err := m.SelectDeliveryOption(ctx); err != nil {
		return err
	}
	if err := m.waitEnabled(ctx, option); err != nil {
		return err
	}
	if err := m.Click(ctx, option, 0); err != nil {
		return err
	}
	if err := m.waitEnabled(ctx, field); err != nil {
		return err
	}
	logger.Info("Field %q appeared", label)
	return m.AssertText(ctx, field, label)
}

// HowToGetCard dispatches on the delivery method: "bank" or "courier".
func (m *Main) HowToGetCard(ctx context.Context, method string) error {
	switch method {
	case MethodBank:
		return m.ReceiveCardFromBank(ctx)
	case MethodCourier:
		return m.ReceiveCardByCourier(ctx)
	default:
		return core.ErrUnknownOption.
			WithMessage(fmt.Sprintf("unknown card delivery method: %s", method)).
			WithDetails(map[string]interface{}{"option": method})
	}
}

// SelectBranchToReceiveCard picks the first bank branch in the list.
func (m *Main) SelectBranchToReceiveCard(ctx context.Context) error {
	if err := m.waitEnabled(ctx, m.L.ButtonSelectAddress); err != nil {
		return err
	}
	if err := m.Click(ctx, m.L.ButtonSelectAddress, 0); err != nil {
		return err
	}
	if err := m.waitEnabled(ctx, m.L.TextSelectBankBranch); err != nil {
		return err
	}
	if err := m.AssertText(ctx, m.L.TextSelectBankBranch, TextSelectBankBranch); err != nil {
		return err
	}
	logger.Info("Screen %q opened", TextSelectBankBranch)

	if err := m.Click(ctx, m.L.LinkSelectFirstBankBranch, 0); err != nil {
		return err
	}
	if err := m.waitEnabled(ctx, m.L.TextUnifiedReferenceService); err != nil {
		return err
	}
	if info, err := m.text(ctx, m.L.TextUnifiedReferenceService); err == nil {
		logger.Info("Branch popup opened: %s", info)
	}
	if err := m.Click(ctx, m.L.ButtonConfirm, 0); err != nil {
		return err
	}

	if err := m.waitEnabled(ctx, m.L.TextAddressOfBankBranch); err != nil {
		return err
	}
	if err := m.AssertText(ctx, m.L.TextAddressOfBankBranch, NoticeAddressOfBankBranch); err != nil {
		return err
	}
	return m.waitEnabled(ctx, m.L.ButtonConfirm)
}

// OpenPageToInputAddress opens the courier address form.
func (m *Main) OpenPageToInputAddress(ctx context.Context) error {
	if err := m.waitEnabled(ctx, m.L.ButtonSelectAddress); err != nil {
		return err
	}
	if err := m.Click(ctx, m.L.ButtonSelectAddress, 0); err != nil {
		return err
	}
	if err := m.waitEnabled(ctx, m.L.TextCardIssuance); err != nil {
		return err
	}
	if err := m.AssertText(ctx, m.L.TextCardIssuance, TextCardIssuance); err != nil {
		return err
	}
	logger.Info("Page %q opened", TextCardIssuance)
	return m.waitEnabled(ctx, m.L.FieldCity)
}

// CourierDeliveryChangeCity switches the delivery city after choosing courier delivery.
func (m *Main) CourierDeliveryChangeCity(ctx context.Context, city string) error {
	if city == "" {
		city = DefaultCourierCity
	}
	if err := m.Click(ctx, m.L.FieldCityReceipt, 0); err != nil {
		return err
	}
	if err := m.AssertText(ctx, m.L.TextCardIssuance, TextCardIssuance); err != nil {
		return err
	}
	logger.Info("Screen %q opened", TextCardIssuance)
	if err := m.SendKeys(ctx, m.L.FieldCity, city, 0, cityChangeDelay); err != nil {
		return err
	}
	if err := m.waitEnabled(ctx, m.L.TextCityInList); err != nil {
		return err
	}
	if err := m.AssertTextContains(ctx, m.L.TextCityInList, city); err != nil {
		return err
	}
	if err := m.Click(ctx, m.L.LinkCityInList, 0); err != nil {
		return err
	}
	if err := m.AssertText(ctx, m.L.TextNextButton, TextNext); err != nil {
		return err
	}
	if err := m.Click(ctx, m.L.ButtonConfirm, 0); err != nil {
		return err
	}
	if err := m.AssertTextContains(ctx, m.L.FieldCityReceipt, city); err != nil {
		return err
	}
	logger.Info("Delivery city changed to %s", city)
	if err := m.AssertText(ctx, m.L.TextReceipt, TextReceipt); err != nil {
		return err
	}
	return m.waitEnabled(ctx, m.L.ButtonConfirm)
}

// ValidateInputDeliveryValidAddress checks street suggestions for a partial and a full address.
func (m *Main) ValidateInputDeliveryValidAddress(ctx context.Context, street string) error {
	if street == "" {
		street = DefaultDeliveryStreet
	}
	partial := prefix(street, 5)
	if err := m.SendKeys(ctx, m.L.FieldCity, partial, 0, 0); err != nil {
		return err
	}
	if err := m.AssertTextContains(ctx, m.L.TextDeliveryStreet, partial); err != nil {
		return err
	}
	logger.Info("Street suggestion after partial input: %s", partial)
	if err := m.SendKeys(ctx, m.L.FieldCity, street, 0, 0); err != nil {
		return err
	}
	if err := m.AssertTextContains(ctx, m.L.TextDeliveryStreet, street); err != nil {
		return err
	}
	logger.Info("Street suggestion after full input: %s", street)
	if err := m.Click(ctx, m.L.TextDeliveryStreet, 0); err != nil {
		return err
	}
	return m.waitEnabled(ctx, m.L.ButtonConfirm)
}

// ValidateInputDeliveryInvalidAddress checks the notice for a street without delivery.
func (m *Main) ValidateInputDeliveryInvalidAddress(ctx context.Context, street, invalidStreet string) error {
	if street == "" {
		street = DefaultStreetPrefix
	}
	if invalidStreet == "" {
		invalidStreet = DefaultInvalidStreet
	}
	partial := prefix(street, 5)
	if err := m.SendKeys(ctx, m.L.FieldCity, partial, 0, 0); err != nil {
		return err
	}
	if err := m.AssertTextContains(ctx, m.L.TextDeliveryStreet, partial); err != nil {
		return err
	}
	logger.Info("Street suggestion after partial input: %s", partial)
	if err := m.SendKeys(ctx, m.L.FieldCity, invalidStreet, 0, 0); err != nil {
		return err
	}
	return m.AssertText(ctx, m.L.NoticeCannotDeliverCard, NoticeCannotDeliverCard)
}

// ValidateInputDeliveryAddress dispatches on the address variant: "valid" or "invalid".
func (m *Main) ValidateInputDeliveryAddress(ctx context.Context, method string) error {
	switch method {
	case AddressValid:
		return m.ValidateInputDeliveryValidAddress(ctx, "")
	case AddressInvalid:
		return m.ValidateInputDeliveryInvalidAddress(ctx, "", "")
	default:
		return core.ErrUnknownOption.
			WithMessage(fmt.Sprintf("unknown delivery address variant: %s", method)).
			WithDetails(map[string]interface{}{"option": method})
	}
}

// InputDeliveryAddress types the full street and picks the first suggestion.
func (m *Main) InputDeliveryAddress(ctx context.Context, street string) error {
	if street == "" {
		street = DefaultDeliveryStreet
	}
	if err := m.SendKeys(ctx, m.L.FieldCity, street, 0, 0); err != nil {
		return err
	}
	if err := m.AssertTextContains(ctx, m.L.TextDeliveryStreet, street); err != nil {
		return err
	}
	logger.Info("Street entered: %s", street)
	if err := m.Click(ctx, m.L.TextDeliveryStreet, 0); err != nil {
		return err
	}
	return m.waitEnabled(ctx, m.L.ButtonConfirm)
}

// ConfirmDeliveryAddress confirms the chosen address.
func (m *Main) ConfirmDeliveryAddress(ctx context.Context) error {
	if err := m.waitEnabled(ctx, m.L.ButtonConfirm); err != nil {
		return err
	}
	return m.Click(ctx, m.L.ButtonConfirm, 0)
}

// OrderCard places the order and checks the result screen.
func (m *Main) OrderCard(ctx context.Context) error {
	if err := m.Click(ctx, m.L.ButtonConfirm, 0); err != nil {
		return err
	}
	if err := m.AssertText(ctx, m.L.TextCardOrdered, TextCardOrdered); err != nil {
		return err
	}
	logger.Info("Card order status: %s", TextCardOrdered)
	return nil
}

// ReturnToHomeScreen leaves the result screen and checks the card on the home screen.
func (m *Main) ReturnToHomeScreen(ctx context.Context) error {
	if err := m.waitEnabled(ctx, m.L.ButtonConfirm); err != nil {
		return err
	}
	if err := m.Click(ctx, m.L.ButtonConfirm, 0); err != nil {
		return err
	}
	if err := m.SwipeToRefresh(ctx); err != nil {
		return err
	}
	if err := m.waitEnabled(ctx, m.L.TextRequestIsProcessed); err != nil {
		return err
	}
	if err := m.AssertText(ctx, m.L.TextCardResidentTatarstan, TextCardResidentTatarstan); err != nil {
		return err
	}
	logger.Info("Home screen shows %q", TextCardResidentTatarstan)
	return nil
}

// prefix returns the first n runes of s.
func prefix(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
