package screen

import "fmt"

// Locator strategies understood by Appium.
const (
	ByXPath           = "xpath"
	ByID              = "id"
	ByAccessibilityID = "accessibility id"
	ByUIAutomator     = "-android uiautomator"
)

// Locator identifies an element on a native screen or inside a WebView.
type Locator struct {
	By    string
	Value string
}

// XPath builds an xpath locator.
func XPath(expr string) Locator {
	return Locator{By: ByXPath, Value: expr}
}

func (l Locator) String() string {
	return l.By + "=" + l.Value
}

// Locators holds every element the main screen flow touches.
// Resource ids depend on the application package, so they are built per package.
type Locators struct {
	// Texts
	TextUpdateApp               Locator
	TextSkip                    Locator
	TextAddCode                 Locator
	TextPayParking              Locator
	TextIssueCard               Locator
	TextOrderResidentCard       Locator
	TextApplyCard               Locator
	TextCardIssuance            Locator
	TextCityInList              Locator
	TextNextButton              Locator
	TextReceipt                 Locator
	TextAddressToReceiveCard    Locator
	TextAddressOfBankBranch     Locator
	TextSelectBankBranch        Locator
	TextUnifiedReferenceService Locator
	TextDeliveryStreet          Locator
	TextCardOrdered             Locator
	TextRequestIsProcessed      Locator
	TextCardResidentTatarstan   Locator

	// Notices
	NoticeCannotDeliverCard Locator

	// Buttons
	ButtonClose          Locator
	ButtonLoginViaAkBars Locator
	ButtonLogin          Locator
	Button1              Locator
	ButtonByCourier      Locator
	ButtonByBank         Locator
	ButtonSelectAddress  Locator
	ButtonConfirm        Locator

	// Links
	LinkIssuePlasticCard     Locator
	LinkCityInList           Locator
	LinkSelectFirstBankBranch Locator

	// Tabs (WebView)
	TabLoginByPassword Locator

	// Fields
	FieldPassword    Locator
	FieldCity        Locator
	FieldCityReceipt Locator

	// Popups
	PopupBankBranch Locator
}

// NewLocators builds the main screen locators for an application package.
func NewLocators(appPackage string) Locators {
	id := func(name string) string { return fmt.Sprintf("%s:id/%s", appPackage, name) }
	textView := func(name string) Locator {
		return XPath(fmt.Sprintf(`//android.widget.TextView[@resource-id="%s"]`, id(name)))
	}
	textViewWithText := func(name, text string) Locator {
		return XPath(fmt.Sprintf(`//android.widget.TextView[@resource-id="%s" and @text="%s"]`, id(name), text))
	}

	return Locators{
		TextUpdateApp:               XPath(`//android.widget.TextView[@text="Обновите приложение"]`),
		TextSkip:                    XPath(`//p[contains(text(), 'Пропустить')]`),
		TextAddCode:                 textView("titleView"),
		TextPayParking:              XPath(`//android.widget.TextView[contains(@text, "Оплата парковок")]`),
		TextIssueCard:               textView("text"),
		TextOrderResidentCard:       textView("tv_header_choose_card_type"),
		TextApplyCard:               textView("text"),
		TextCardIssuance:            XPath(`//android.widget.TextView[@text="Выдача карты"]`),
		TextCityInList:              textView("tv_main_row_item"),
		TextNextButton:              textView("text"),
		TextReceipt:                 textView("kit_title_check_box"),
		TextAddressToReceiveCard:    textViewWithText("kit_label_large_button", NoticeAddressToReceiveCard),
		TextAddressOfBankBranch:     textViewWithText("kit_label_large_button", NoticeAddressOfBankBranch),
		TextSelectBankBranch:        XPath(`//android.widget.TextView[@text="Выбор отделения"]`),
		TextUnifiedReferenceService: textView("kit_tv_label_description"),
		TextDeliveryStreet: XPath(fmt.Sprintf(
			`//android.widget.TextView[@resource-id="%s" and contains(@text, "ул")]`, id("tv_main_row_item"))),
		TextCardOrdered:           textView("tv_title_result"),
		TextRequestIsProcessed:    textView("tv_header_row_finances"),
		TextCardResidentTatarstan: textView("tv_subheader_row_finances"),

		NoticeCannotDeliverCard: XPath(fmt.Sprintf(`//android.widget.TextView[@text="%s"]`, NoticeCannotDeliverCard)),

		ButtonClose:          XPath(`//androidx.compose.ui.platform.ComposeView/android.view.View/android.widget.Button`),
		ButtonLoginViaAkBars: XPath(`//android.widget.TextView[@text="Войти через Ак Барс Банк"]`),
		ButtonLogin:          XPath(`//button[@id='submit-button']`),
		Button1:              textView("bt_1"),
		ButtonByCourier:      textViewWithText("tv_check_box", "Курьером"),
		ButtonByBank:         textViewWithText("tv_check_box", "В отделении"),
		ButtonSelectAddress: XPath(fmt.Sprintf(
			`(//android.widget.TextView[@resource-id="%s"])[2]`, id("tv_large_button"))),
		ButtonConfirm: XPath(fmt.Sprintf(
			`//android.view.ViewGroup[@resource-id="%s"]`, id("cl_main_kit_progress_button"))),

		LinkIssuePlasticCard: XPath(fmt.Sprintf(
			`//android.widget.LinearLayout[@resource-id="%s"]/android.view.ViewGroup`, id("btn_plastic_card_type"))),
		LinkCityInList: XPath(fmt.Sprintf(
			`//androidx.recyclerview.widget.RecyclerView[@resource-id="%s"]/android.widget.FrameLayout/android.widget.LinearLayout`, id("list"))),
		LinkSelectFirstBankBranch: XPath(fmt.Sprintf(
			`//androidx.recyclerview.widget.RecyclerView[@resource-id="%s"]/android.widget.FrameLayout[1]/android.widget.LinearLayout`, id("list"))),

		TabLoginByPassword: XPath(`//label[@id='password-btn']`),

		FieldPassword:    XPath(`//input[@id='input-password']`),
		FieldCity:        XPath(`//android.widget.EditText[@resource-id="android:id/edit"]`),
		FieldCityReceipt: textView("tv_large_button"),

		PopupBankBranch: XPath(fmt.Sprintf(
			`//android.widget.FrameLayout[@resource-id="%s"]/android.widget.LinearLayout`, id("design_bottom_sheet"))),
	}
}
