package harness

import (
	"context"
	"errors"
	"fmt"

	"github.com/cucumber/godog"
)

var errNoWorld = errors.New("no browser session for this scenario")

// CommonSteps registers the built-in browser steps. Quoted arguments may
// reference objects as "$shared.path" or "$page.path".
func CommonSteps(sc *godog.ScenarioContext) {
	sc.Step(`^I open "([^"]*)"$`, openPage)
	sc.Step(`^I click the "([^"]*)" containing "([^"]*)"$`, clickContaining)
	sc.Step(`^I select "([^"]*)" from "([^"]*)"$`, selectOption)
	sc.Step(`^I see "([^"]*)" in "([^"]*)"$`, seeText)
	sc.Step(`^the "([^"]*)" attribute of "([^"]*)" becomes "([^"]*)"$`, attributeBecomes)
	sc.Step(`^the "([^"]*)" attribute of "([^"]*)" appears$`, attributeAppears)
	sc.Step(`^the "([^"]*)" attribute of "([^"]*)" disappears$`, attributeDisappears)
	sc.Step(`^the "([^"]*)" content of "([^"]*)" is "([^"]*)"$`, pseudoContentIs)
	sc.Step(`^a new window opens$`, newWindowOpens)
	sc.Step(`^I clear cookies and storage$`, clearCookiesAndStorage)
}

// resolved fetches the World and expands every argument.
func resolved(ctx context.Context, args ...*string) (*World, error) {
	w := WorldFrom(ctx)
	if w == nil {
		return nil, errNoWorld
	}
	for _, arg := range args {
		v, err := w.Resolve(*arg)
		if err != nil {
			return nil, err
		}
		*arg = v
	}
	return w, nil
}

func openPage(ctx context.Context, url string) error {
	w, err := resolved(ctx, &url)
	if err != nil {
		return err
	}
	return w.Helpers.LoadPage(ctx, url)
}

func clickContaining(ctx context.Context, selector, text string) error {
	w, err := resolved(ctx, &selector, &text)
	if err != nil {
		return err
	}
	return w.Helpers.ClickElementContainingText(ctx, selector, text)
}

func selectOption(ctx context.Context, value, selector string) error {
	w, err := resolved(ctx, &value, &selector)
	if err != nil {
		return err
	}
	return w.Helpers.SelectDropdownValue(ctx, selector, value)
}

func seeText(ctx context.Context, text, selector string) error {
	w, err := resolved(ctx, &text, &selector)
	if err != nil {
		return err
	}
	_, err = w.Helpers.WaitForText(ctx, selector, text, 0)
	return err
}

func attributeBecomes(ctx context.Context, attr, selector, value string) error {
	w, err := resolved(ctx, &attr, &selector, &value)
	if err != nil {
		return err
	}
	return w.Helpers.WaitUntilAttributeEquals(ctx, selector, attr, value, 0)
}

func attributeAppears(ctx context.Context, attr, selector string) error {
	w, err := resolved(ctx, &attr, &selector)
	if err != nil {
		return err
	}
	return w.Helpers.WaitUntilAttributeExists(ctx, selector, attr, 0)
}

func attributeDisappears(ctx context.Context, attr, selector string) error {
	w, err := resolved(ctx, &attr, &selector)
	if err != nil {
		return err
	}
	return w.Helpers.WaitUntilAttributeDoesNotExist(ctx, selector, attr, 0)
}

func pseudoContentIs(ctx context.Context, pseudo, selector, want string) error {
	w, err := resolved(ctx, &pseudo, &selector, &want)
	if err != nil {
		return err
	}
	got, err := w.Helpers.PseudoElementContent(ctx, selector, pseudo)
	if err != nil {
		return err
	}
	w.Assert.Equal(want, got, "%s content of %s", pseudo, selector)
	return w.Err()
}

func newWindowOpens(ctx context.Context) error {
	w, err := resolved(ctx)
	if err != nil {
		return err
	}
	if handles := w.Helpers.WaitForNewWindows(ctx, 0); handles == nil {
		return fmt.Errorf("no new window opened within %dms", w.Wait.DefaultTimeout().Milliseconds())
	}
	return nil
}

func clearCookiesAndStorage(ctx context.Context) error {
	w, err := resolved(ctx)
	if err != nil {
		return err
	}
	return w.Helpers.ClearCookiesAndStorages(ctx)
}
