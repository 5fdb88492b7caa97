package scenario

import (
	"context"
	"fmt"

	"github.com/citizencard-qa/autotests-mobile/pkg/screen"
)

// SuiteIssuingPlasticCard groups the plastic card issuance scenarios.
const SuiteIssuingPlasticCard = "IssuingPlasticCard"

// Registry returns every registered scenario with parameterised variants expanded.
func Registry() []Scenario {
	var all []Scenario
	add := func(s Scenario) {
		s.Suite = SuiteIssuingPlasticCard
		s.Setup = IssuePlasticCard()
		all = append(all, s)
	}

	add(Scenario{
		Name:        "issuing_resident_plastic_card_from_main_screen",
		Description: "Issue a resident plastic card from the main screen",
		Cases:       []string{"C15798752"},
		Marks:       []string{MarkCore, MarkLimited},
	})

	add(Scenario{
		Name:        "assert_city_can_get_card",
		Description: "Enter a city where the card can be received",
		Cases:       []string{"C15798875"},
		Marks:       []string{MarkCore},
		Steps: []Step{
			inputCity(""),
			onMain("Select delivery option", (*screen.Main).SelectDeliveryOption),
		},
	})

	for _, city := range []string{"Нальчик", "Казанфр"} {
		city := city
		add(Scenario{
			Name:        fmt.Sprintf("assert_city_cant_get_card[%s]", city),
			Description: "Enter a city where the card cannot be received",
			Cases:       []string{"C15798876", "C15798877"},
			Marks:       []string{MarkCore},
			Params:      "city=" + city,
			Steps: []Step{{
				Name: "Input invalid delivery city " + city,
				Run: func(ctx context.Context, env *Env) error {
					return env.App.Main.InputDeliveryInvalidCity(ctx, city)
				},
			}},
		})
	}

	for _, method := range []string{screen.MethodBank, screen.MethodCourier} {
		method := method
		add(Scenario{
			Name:        fmt.Sprintf("how_to_get_card[%s]", method),
			Description: "Choose how to receive the card: courier or bank branch",
			Cases:       []string{"C15798903", "C15798899"},
			Marks:       []string{MarkCore},
			Params:      "delivery_method=" + method,
			Steps: []Step{
				inputCity(""),
				{
					Name: "How to get card: " + method,
					Run: func(ctx context.Context, env *Env) error {
						return env.App.Main.HowToGetCard(ctx, method)
					},
				},
			},
		})
	}

	add(Scenario{
		Name:        "select_branch_to_receive_card",
		Description: "Select a bank branch to receive the issued plastic card",
		Cases:       []string{"C15798904"},
		Marks:       []string{MarkLimited},
		Steps:       append([]Step{inputCity("")}, branchSteps()...),
	})

	add(Scenario{
		Name:        "go_to_page_to_enter_address",
		Description: "Open the courier delivery address page",
		Cases:       []string{"C24016538"},
		Marks:       []string{MarkCore},
		Steps: []Step{
			inputCity(""),
			onMain("Receive card by courier", (*screen.Main).ReceiveCardByCourier),
			onMain("Open page to input address", (*screen.Main).OpenPageToInputAddress),
		},
	})

	add(Scenario{
		Name:        "courier_delivery_change_city",
		Description: "Change the courier delivery city",
		Cases:       []string{"C15798900"},
		Marks:       []string{MarkCore},
		Steps: []Step{
			inputCity(""),
			onMain("Receive card by courier", (*screen.Main).ReceiveCardByCourier),
			{
				Name: "Courier delivery change city",
				Run: func(ctx context.Context, env *Env) error {
					return env.App.Main.CourierDeliveryChangeCity(ctx, "")
				},
			},
		},
	})

	for _, variant := range []string{screen.AddressValid, screen.AddressInvalid} {
		variant := variant
		add(Scenario{
			Name:        fmt.Sprintf("assert_delivery_address[%s]", variant),
			Description: "Check a valid and an invalid courier delivery address",
			Cases:       []string{"C15798901", "C15798902"},
			Marks:       []string{MarkCore},
			Params:      "delivery_method=" + variant,
			Steps: []Step{
				inputCity(screen.DefaultCourierCity),
				onMain("Receive card by courier", (*screen.Main).ReceiveCardByCourier),
				onMain("Open page to input address", (*screen.Main).OpenPageToInputAddress),
				{
					Name: "Validate delivery address: " + variant,
					Run: func(ctx context.Context, env *Env) error {
						return env.App.Main.ValidateInputDeliveryAddress(ctx, variant)
					},
				},
			},
		})
	}

	add(Scenario{
		Name:         "delivery_card_to_bank_branch",
		Description:  "Order card delivery to a bank branch",
		Cases:        []string{"C15810130"},
		Marks:        []string{MarkLimited},
		ConsumesUser: true,
		Steps: append(append([]Step{inputCity("")}, branchSteps()...),
			onMain("Order card", (*screen.Main).OrderCard)),
	})

	add(Scenario{
		Name:         "return_to_main_screen_after_ordering_card",
		Description:  "Return to the home screen after ordering the card",
		Cases:        []string{"C15811662"},
		Marks:        []string{MarkCore},
		ConsumesUser: true,
		Steps: append(append([]Step{inputCity("")}, branchSteps()...),
			onMain("Order card", (*screen.Main).OrderCard),
			onMain("Return to home screen", (*screen.Main).ReturnToHomeScreen)),
	})

	add(Scenario{
		Name:         "card_delivery_by_courier",
		Description:  "Order card delivery by courier",
		Cases:        []string{"C15810129"},
		Marks:        []string{MarkLimited},
		ConsumesUser: true,
		Steps: []Step{
			inputCity(screen.DefaultCourierCity),
			onMain("Receive card by courier", (*screen.Main).ReceiveCardByCourier),
			onMain("Open page to input address", (*screen.Main).OpenPageToInputAddress),
			{
				Name: "Input delivery address",
				Run: func(ctx context.Context, env *Env) error {
					return env.App.Main.InputDeliveryAddress(ctx, "")
				},
			},
			onMain("Confirm delivery address", (*screen.Main).ConfirmDeliveryAddress),
			onMain("Order card", (*screen.Main).OrderCard),
		},
	})

	return all
}

// Lookup returns the registered scenario with the given name.
func Lookup(name string) (Scenario, bool) {
	for _, s := range Registry() {
		if s.Name == name {
			return s, true
		}
	}
	return Scenario{}, false
}

func inputCity(city string) Step {
	name := "Input delivery city"
	if city != "" {
		name += " " + city
	}
	return Step{
		Name: name,
		Run: func(ctx context.Context, env *Env) error {
			return env.App.Main.InputDeliveryCity(ctx, city)
		},
	}
}

func branchSteps() []Step {
	return []Step{
		onMain("Receive card from bank", (*screen.Main).ReceiveCardFromBank),
		onMain("Select branch to receive card", (*screen.Main).SelectBranchToReceiveCard),
	}
}
