package screens

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	GET(path string) error
	GetResponseField(field string) (interface{}, error)
}

// RegisterSteps registers screen-related step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &screenSteps{tc: tc}

	ctx.Step(`^screen "([^"]*)" has finished loading$`, steps.waitLoaded)
	ctx.Step(`^the screen should show category "([^"]*)"$`, steps.shouldShowCategory)
	ctx.Step(`^the screen should report no error$`, steps.shouldReportNoError)
	ctx.Step(`^I save the screen version$`, steps.saveVersion)
	ctx.Step(`^I long-poll screen "([^"]*)" for (\d+) seconds$`, steps.longPoll)
	ctx.Step(`^the screen version should be unchanged$`, steps.versionUnchanged)
}

type screenSteps struct {
	tc      TestContext
	version uint64
}

func (s *screenSteps) currentVersion() (uint64, error) {
	v, err := s.tc.GetResponseField("version")
	if err != nil {
		return 0, err
	}
	f, ok := v.(float64)
	if !ok {
		return 0, fmt.Errorf("version is %T", v)
	}
	return uint64(f), nil
}

func (s *screenSteps) waitLoaded(ctx context.Context, name string) error {
	if err := s.tc.GET("/screens/" + name); err != nil {
		return err
	}
	for range 10 {
		loading, err := s.tc.GetResponseField("loading")
		if err != nil {
			return err
		}
		if loading == false {
			return nil
		}
		version, err := s.currentVersion()
		if err != nil {
			return err
		}
		if err := s.tc.GET(fmt.Sprintf("/screens/%s?since=%d&wait=5s", name, version)); err != nil {
			return err
		}
	}
	return fmt.Errorf("screen %q still loading", name)
}

func (s *screenSteps) shouldShowCategory(ctx context.Context, category string) error {
	categories, err := s.tc.GetResponseField("categories")
	if err != nil {
		return err
	}
	list, _ := categories.([]interface{})
	for _, c := range list {
		if c == category {
			return nil
		}
	}
	return fmt.Errorf("category %q not in %v", category, list)
}

func (s *screenSteps) shouldReportNoError(ctx context.Context) error {
	if msg, err := s.tc.GetResponseField("error"); err == nil {
		return fmt.Errorf("screen reports error: %v", msg)
	}
	return nil
}

func (s *screenSteps) saveVersion(ctx context.Context) error {
	v, err := s.currentVersion()
	if err != nil {
		return err
	}
	s.version = v
	return nil
}

func (s *screenSteps) longPoll(ctx context.Context, name string, seconds int) error {
	return s.tc.GET(fmt.Sprintf("/screens/%s?since=%d&wait=%ds", name, s.version, seconds))
}

func (s *screenSteps) versionUnchanged(ctx context.Context) error {
	v, err := s.currentVersion()
	if err != nil {
		return err
	}
	if v != s.version {
		return fmt.Errorf("expected version %d, got %d", s.version, v)
	}
	return nil
}
