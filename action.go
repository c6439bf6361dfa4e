package sigma

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// PerformAction arms, disarms or stay-arms the partition and waits until the
// panel reports the new status.
//
// Only one action runs at a time. If the panel is already in the target
// status nothing is sent. Once confirmed, the session is dropped so the next
// read sees fresh data, and a value is sent on Changes.
func (c *Client) PerformAction(ctx context.Context, action Action) error {
	target, ok := action.Target()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAction, action)
	}

	c.actionMu.Lock()
	defer c.actionMu.Unlock()

	log.Info("performing action", "action", action)
	done, err := retry(ctx, action.String(), c.opts.Retry.Action, isRecoverable, func() (bool, error) {
		status, err := c.currentStatus(ctx)
		if err != nil {
			return false, err
		}
		if status == target {
			return true, nil
		}
		return false, c.trigger(ctx, action)
	})
	if err != nil {
		return fmt.Errorf("could not %s: %w", action, err)
	}
	if done {
		log.Info("already in target status", "status", target)
		return nil
	}

	if err := c.verify(ctx, target); err != nil {
		return fmt.Errorf("could not %s: %w", action, err)
	}
	log.Info("action confirmed", "action", action, "status", target)
	c.Logout(ctx)
	c.notifyChanged()
	return nil
}

// currentStatus is the light read used by actions: zones and battery may be
// missing, the status may not.
func (c *Client) currentStatus(ctx context.Context) (Status, error) {
	snap, err := c.read(ctx, func(s Snapshot) error {
		if s.Status == StatusUnknown {
			return fmt.Errorf("%w: unknown alarm status", ErrIncompleteData)
		}
		return nil
	})
	return snap.Status, err
}

func (c *Client) trigger(ctx context.Context, action Action) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.page(ctx, request{
		method:  http.MethodGet,
		path:    action.page(),
		referer: partitionPage,
	}); err != nil {
		return fmt.Errorf("could not trigger %s: %w", action, err)
	}
	log.Debug("triggered", "action", action)
	return nil
}

// verify polls the status until it equals target or ActionTimeout elapses.
func (c *Client) verify(parent context.Context, target Status) error {
	ctx, cancel := context.WithTimeout(parent, c.opts.ActionTimeout)
	defer cancel()

	last := StatusUnknown
	wait := c.opts.PostActionDelay
	for {
		if err := sleep(ctx, wait); err != nil {
			if parent.Err() != nil {
				return parent.Err()
			}
			return fmt.Errorf(
				"%w: wanted %s after %s, last seen %s",
				ErrActionTimeout, target, c.opts.ActionTimeout, last,
			)
		}
		wait = c.opts.ActionPollInterval

		status, err := c.currentStatus(ctx)
		switch {
		case errors.Is(err, ErrAuthentication):
			return err
		case err != nil:
			log.Warn("could not read status", "err", err)
		case status == target:
			return nil
		default:
			last = status
			log.Debug("waiting for status", "status", status, "target", target)
		}
	}
}
