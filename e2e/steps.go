package e2e

import (
	"github.com/cucumber/godog"

	"menuboard/e2e/steps/common"
	"menuboard/e2e/steps/screens"
)

// RegisterSteps registers all step definitions from modular packages
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	// Generic requests and assertions
	common.RegisterSteps(ctx, tc)

	// Screen state, refetch and long-poll steps
	screens.RegisterSteps(ctx, tc)
}
