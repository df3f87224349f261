package wait

import (
	"context"
	"fmt"
	"time"

	"github.com/shehryarbajwa/cukebrowser/internal/driver"
)

// WaitUntilAttributeEquals waits until the attribute of the first element
// matching selector equals value.
func WaitUntilAttributeEquals(ctx context.Context, e *Engine, s driver.Session, selector, attr, value string, timeout time.Duration) error {
	return attributeWait(ctx, e, s, selector, attr, timeout,
		fmt.Sprintf("to equal %q", value),
		func(v string, present bool) bool { return present && v == value })
}

// WaitUntilAttributeExists waits until the element carries the attribute.
func WaitUntilAttributeExists(ctx context.Context, e *Engine, s driver.Session, selector, attr string, timeout time.Duration) error {
	return attributeWait(ctx, e, s, selector, attr, timeout,
		"to exist",
		func(_ string, present bool) bool { return present })
}

// WaitUntilAttributeDoesNotExist waits until the attribute is gone.
func WaitUntilAttributeDoesNotExist(ctx context.Context, e *Engine, s driver.Session, selector, attr string, timeout time.Duration) error {
	return attributeWait(ctx, e, s, selector, attr, timeout,
		"to not exist",
		func(_ string, present bool) bool { return !present })
}

func attributeWait(ctx context.Context, e *Engine, s driver.Session, selector, attr string, timeout time.Duration, expectation string, match func(value string, present bool) bool) error {
	timeout = e.resolveTimeout(timeout)
	_, err := Until(ctx, e, s, Descriptor[string]{
		Predicate: func(ctx context.Context, s driver.Session) (string, bool, error) {
			v, present, err := s.Attribute(ctx, selector, attr)
			if err != nil {
				return "", false, err
			}
			return v, match(v, present), nil
		},
		Timeout: timeout,
		Message: fmt.Sprintf("waiting for attribute %q of %q %s timed out after %dms",
			attr, selector, expectation, timeout.Milliseconds()),
	})
	return err
}
