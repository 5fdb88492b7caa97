package screen

// Expected UI texts on the main screen flow.
const (
	NoticeCannotDeliverCard    = "Мы не можем доставить карту в это место. Попробуйте ввести другой запрос"
	NoticeAddressToReceiveCard = "Адрес"
	NoticeAddressOfBankBranch  = "Отделение получения"

	TextSelectBankBranch      = "Выбор отделения"
	TextCardIssuance          = "Выдача карты"
	TextReceipt               = "Получение"
	TextNext                  = "Далее"
	TextCardOrdered           = "Карта заказана"
	TextRequestIsProcessed    = "Одобрена"
	TextCardResidentTatarstan = "Карта жителя Татарстана"

	TextIssueCardButton = "Выпустить карту"
	TextApplyCardButton = "Оформить карту"
	TextByPasswordTab   = "По паролю"
	TextSetAppCode      = "Установите"
	TextRepeatAppCode   = "Повторите код"
)

// Defaults used by the delivery scenarios.
const (
	DefaultDeliveryCity   = "Альметьевск"
	DefaultInvalidCity    = "Нальчик"
	DefaultCourierCity    = "Казань"
	DefaultDeliveryStreet = "Чистопольская, д 1"
	DefaultStreetPrefix   = "Чистопольская"
	DefaultInvalidStreet  = "Федора Абрамова"
	DefaultAppCode        = "1111"
)
