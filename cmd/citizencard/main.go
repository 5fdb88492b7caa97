// Command citizencard runs the Citizen Card mobile UI autotests.
package main

import "github.com/citizencard-qa/autotests-mobile/pkg/cli"

func main() {
	cli.Execute()
}
