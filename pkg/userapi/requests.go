package userapi

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Record is a decoded JSON object as returned by the banking core.
// Numbers are kept as json.Number so ids round-trip unchanged.
type Record map[string]interface{}

// String returns the field rendered as text, or "" when absent.
func (r Record) String(key string) string {
	v, ok := r[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

// Path walks nested objects and returns the value at keys.
func (r Record) Path(keys ...string) (interface{}, error) {
	var cur interface{} = map[string]interface{}(r)
	for i, k := range keys {
		obj, ok := asObject(cur)
		if !ok {
			return nil, fmt.Errorf("%s is not an object", strings.Join(keys[:i], "."))
		}
		v, ok := obj[k]
		if !ok {
			return nil, fmt.Errorf("missing field %s", strings.Join(keys[:i+1], "."))
		}
		cur = v
	}
	return cur, nil
}

func asObject(v interface{}) (map[string]interface{}, bool) {
	switch t := v.(type) {
	case map[string]interface{}:
		return t, true
	case Record:
		return t, true
	}
	return nil, false
}

func idString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

// Fixed client attributes of provisioned users.
const (
	embossingFirstName = "NAME"
	embossingLastName  = "CARDHOLDER"
	maleLabel          = "Мужской"
)

// ClientInfo is the personal part of a processing client.
type ClientInfo struct {
	IsResident         bool        `json:"isResident"`
	OrderDprt          string      `json:"orderDprt"`
	ShortName          string      `json:"shortName"`
	FirstName          string      `json:"firstName"`
	LastName           string      `json:"lastName"`
	MiddleName         string      `json:"middleName"`
	EmbossingFirstName string      `json:"embossingFirstName"`
	EmbossingLastName  string      `json:"embossingLastName"`
	Country            string      `json:"country"`
	Language           string      `json:"language"`
	BirthDate          string      `json:"birthDate"`
	BirthPlace         string      `json:"birthPlace"`
	Gender             string      `json:"gender"`
	MaritalStatus      string      `json:"maritalStatus"`
	INN                *string     `json:"inn"`
	Email              string      `json:"email"`
	TabelNumber        interface{} `json:"tabelNumber"`
	CompanyCode        *string     `json:"companyCode"`
	RiskLevel          string      `json:"riskLevel"`
	PDL                string      `json:"pdl"`
	UEK                *string     `json:"uek"`
	Comment            *string     `json:"comment"`
	CodeWord           *string     `json:"codeWord"`
}

// ClientDocument is the identity document of a processing client.
type ClientDocument struct {
	RegNumberType    string `json:"regNumberType"`
	RegSeries        string `json:"regSeries"`
	RegNumber        string `json:"regNumber"`
	RegNumberDetails string `json:"regNumberDetails"`
	RegDate          string `json:"regDate"`
	DepartmentCode   string `json:"departmentCode"`
}

// PhoneList holds the client phones; all are set to the mobile number.
type PhoneList struct {
	PhoneMobile string `json:"phoneMobile"`
	PhoneHome   string `json:"phoneHome"`
	PhoneWork   string `json:"phoneWork"`
}

// ClientAddress is a postal address of a processing client.
type ClientAddress struct {
	AddressType string  `json:"addressType"`
	PostalCode  string  `json:"postalCode"`
	Country     string  `json:"country"`
	District    *string `json:"district"`
	City        string  `json:"city"`
	Street      string  `json:"street"`
	House       string  `json:"house"`
	FlatNumber  string  `json:"flatNumber"`
	FullAddress string  `json:"fullAddress"`
}

// ProcessingUserRequest creates the client in the processing system.
type ProcessingUserRequest struct {
	ClientInfo     ClientInfo      `json:"clientInfo"`
	ClientDocument ClientDocument  `json:"clientDocument"`
	PhoneList      PhoneList       `json:"phoneList"`
	ClientAddress  []ClientAddress `json:"clientAddress"`
}

// NewProcessingUserRequest builds the processing client from a CRM user.
func NewProcessingUserRequest(user Record, department string) (ProcessingUserRequest, error) {
	first, last, middle := user.String("first_name"), user.String("last_name"), user.String("middle_name")
	if first == "" || middle == "" || last == "" {
		return ProcessingUserRequest{}, fmt.Errorf("crm user has incomplete name: %q %q %q", last, first, middle)
	}
	if department == "" {
		department = "0000"
	}

	gender := "Female"
	if user.String("sex") == maleLabel {
		gender = "Male"
	}
	phone := user.String("phone")

	return ProcessingUserRequest{
		ClientInfo: ClientInfo{
			IsResident:         true,
			OrderDprt:          department,
			ShortName:          fmt.Sprintf("%s %s. %s.", last, initial(first), initial(middle)),
			FirstName:          first,
			LastName:           last,
			MiddleName:         middle,
			EmbossingFirstName: embossingFirstName,
			EmbossingLastName:  embossingLastName,
			Country:            "RUS",
			Language:           "R",
			BirthDate:          "1994-09-09",
			BirthPlace:         "Казань",
			Gender:             gender,
			MaritalStatus:      "Single",
			Email:              user.String("email"),
			TabelNumber:        user["crm_id"],
			RiskLevel:          "R1",
			PDL:                "NotApplicable",
		},
		ClientDocument: ClientDocument{
			RegNumberType:    "Passport",
			RegSeries:        strings.ReplaceAll(user.String("passport_series"), " ", ""),
			RegNumber:        user.String("passport_number"),
			RegNumberDetails: user.String("passport_issue_place"),
			RegDate:          "2014-10-10",
			DepartmentCode:   user.String("passport_division_code"),
		},
		PhoneList: PhoneList{PhoneMobile: phone, PhoneHome: phone, PhoneWork: phone},
		ClientAddress: []ClientAddress{{
			AddressType: "Registration",
			PostalCode:  "420021",
			Country:     "RUS",
			City:        "Казань",
			Street:      "Татарстан",
			House:       "20",
			FlatNumber:  "220",
			FullAddress: "Россия, 420021, д 20, кв 220",
		}},
	}, nil
}

func initial(s string) string {
	for _, r := range s {
		return string(r)
	}
	return ""
}

// LinkRequest stores the processing id on the CRM client.
type LinkRequest struct {
	ClientType    string `json:"clientType"`
	CRMID         string `json:"crmId"`
	ClientAbsType string `json:"clientAbsType"`
	ClientAbsID   string `json:"clientAbsId"`
}

// NewLinkRequest builds the CRM link for a processing id.
func NewLinkRequest(crmID, way4ID string) LinkRequest {
	return LinkRequest{ClientType: "Individual", CRMID: crmID, ClientAbsType: "WAY4", ClientAbsID: way4ID}
}

// GatewayIDRequest registers a login in the messaging gateway.
type GatewayIDRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// NewGatewayIDRequest builds the gateway registration.
func NewGatewayIDRequest(login, password string) GatewayIDRequest {
	return GatewayIDRequest{Login: login, Password: password}
}

// SaveGatewayProcessingRequest stores the gateway id in the processing system.
type SaveGatewayProcessingRequest struct {
	Way4ID   string      `json:"Way4Id"`
	BankokID interface{} `json:"BankokId"`
}

// NewSaveGatewayProcessingRequest builds the processing update.
func NewSaveGatewayProcessingRequest(way4ID string, gatewayID interface{}) SaveGatewayProcessingRequest {
	return SaveGatewayProcessingRequest{Way4ID: way4ID, BankokID: gatewayID}
}

// System names a client in one of the bank systems.
type System struct {
	Name     string      `json:"name"`
	ClientID interface{} `json:"clientID"`
}

// SaveGatewayCRMRequest stores the gateway id on the CRM client.
type SaveGatewayCRMRequest struct {
	SearchSystem System `json:"searchSystem"`
	InsertSystem System `json:"insertSystem"`
}

// NewSaveGatewayCRMRequest builds the CRM update.
func NewSaveGatewayCRMRequest(crmID string, gatewayID interface{}) SaveGatewayCRMRequest {
	return SaveGatewayCRMRequest{
		SearchSystem: System{Name: "CRM", ClientID: crmID},
		InsertSystem: System{Name: "BANKOK", ClientID: gatewayID},
	}
}

// DigitalCardClient is the card holder part of a card issue.
type DigitalCardClient struct {
	Way4ID       string `json:"way4Id"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	MiddleName   string `json:"middleName"`
	EmbFirstName string `json:"embFirstName"`
	EmbLastName  string `json:"embLastName"`
	Department   string `json:"department"`
}

// CardProduct describes the issued card.
type CardProduct struct {
	ExpProd     bool   `json:"expProd"`
	ProductCode string `json:"productCode"`
	Department  string `json:"department"`
}

// Contract is the card contract of a card issue.
type Contract struct {
	Card        CardProduct `json:"card"`
	ProductCode string      `json:"productCode"`
	Department  string      `json:"department"`
}

// DigitalCardRequest issues a digital resident card.
type DigitalCardRequest struct {
	Client   DigitalCardClient `json:"client"`
	Contract Contract          `json:"contract"`
}

// NewDigitalCardRequest builds a card issue for the processing client.
func NewDigitalCardRequest(way4ID string, user Record, productCode, department string) DigitalCardRequest {
	if department == "" {
		department = "0000"
	}
	return DigitalCardRequest{
		Client: DigitalCardClient{
			Way4ID:       way4ID,
			FirstName:    user.String("first_name"),
			LastName:     user.String("last_name"),
			MiddleName:   user.String("middle_name"),
			EmbFirstName: embossingFirstName,
			EmbLastName:  embossingLastName,
			Department:   department,
		},
		Contract: Contract{
			Card:        CardProduct{ExpProd: false, ProductCode: productCode, Department: department},
			ProductCode: productCode,
			Department:  department,
		},
	}
}

// CardInfoRequest asks for the details of an issued card.
type CardInfoRequest struct {
	CardID interface{} `json:"CardId"`
}

// NewCardInfoRequest builds the card lookup.
func NewCardInfoRequest(cardID interface{}) CardInfoRequest {
	return CardInfoRequest{CardID: cardID}
}
