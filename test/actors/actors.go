package actors

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/Raguls333/noolix-sub001/apperr"
	"github.com/Raguls333/noolix-sub001/commitment"
	"github.com/Raguls333/noolix-sub001/test/infra"
)

// Rejected reports whether err is a domain refusal rather than a failure of
// the system. Under chaos, dropped connections also count as expected.
func Rejected(err error, chaos bool) bool {
	if apperr.KindOf(err) != "" {
		return true
	}
	return chaos && !errors.Is(err, context.Canceled)
}

func tokenFromURL(url string) string {
	return url[strings.LastIndex(url, "/")+1:]
}

// race runs fn from n goroutines released together and returns how many
// calls succeeded. Unexpected errors are returned joined.
func race(n int, chaos bool, fn func() error) (int, error) {
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		errs      []error
	)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			err := fn()
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case !Rejected(err, chaos):
				errs = append(errs, err)
			}
		}()
	}
	close(start)
	wg.Wait()
	return successes, errors.Join(errs...)
}

// ApprovalRacer repeatedly issues an approval link and has racers clients
// redeem it at once. A link must never be redeemed twice.
func ApprovalRacer(ctx context.Context, env *infra.Env, racers int, chaos bool, stop <-chan struct{}) error {
	for i := 0; ; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}

		c, err := env.NewCommitment(ctx, fmt.Sprintf("approval race %d", i))
		if err != nil {
			if Rejected(err, chaos) {
				continue
			}
			return fmt.Errorf("approval racer create: %w", err)
		}
		sent, err := env.Commitments.SendApprovalLink(ctx, env.Founder, c.ID, false)
		if err != nil {
			if Rejected(err, chaos) {
				continue
			}
			return fmt.Errorf("approval racer send: %w", err)
		}
		raw := tokenFromURL(sent.URL)

		wins, err := race(racers, chaos, func() error {
			_, err := env.Commitments.ConsumeApproval(ctx, raw, commitment.ApprovalDecision{
				Action: commitment.ActionApprove,
				Client: commitment.ClientContext{Name: "Racer", Email: "racer@stress.test"},
			})
			return err
		})
		if err != nil {
			return fmt.Errorf("approval racer consume: %w", err)
		}
		if wins > 1 || (wins == 0 && !chaos) {
			return fmt.Errorf("approval link %s redeemed %d times", c.ID, wins)
		}
		time.Sleep(time.Duration(10+rand.Intn(20)) * time.Millisecond)
	}
}

// ChangeRequestRacer has members open change requests on the same commitment
// concurrently, then accepts the winner from several goroutines. Exactly one
// request may open and exactly one fork may be created.
func ChangeRequestRacer(ctx context.Context, env *infra.Env, racers int, chaos bool, stop <-chan struct{}) error {
	for i := 0; ; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}

		c, err := env.NewCommitment(ctx, fmt.Sprintf("change race %d", i))
		if err != nil {
			if Rejected(err, chaos) {
				continue
			}
			return fmt.Errorf("change racer create: %w", err)
		}
		if _, err := env.Commitments.SendApprovalLink(ctx, env.Founder, c.ID, false); err != nil {
			if Rejected(err, chaos) {
				continue
			}
			return fmt.Errorf("change racer send: %w", err)
		}

		var (
			mu     sync.Mutex
			opened []commitment.ChangeRequest
		)
		wins, err := race(racers, chaos, func() error {
			cr, err := env.Commitments.RequestChange(ctx, env.Founder, c.ID, "needs another milestone")
			if err == nil {
				mu.Lock()
				opened = append(opened, cr)
				mu.Unlock()
			}
			return err
		})
		if err != nil {
			return fmt.Errorf("change racer request: %w", err)
		}
		if wins > 1 || (wins == 0 && !chaos) {
			return fmt.Errorf("commitment %s got %d open change requests", c.ID, wins)
		}
		if wins == 0 {
			continue
		}

		title := fmt.Sprintf("change race %d v2", i)
		wins, err = race(racers, chaos, func() error {
			_, err := env.Commitments.AcceptChangeRequest(ctx, env.Founder, opened[0].ID, commitment.AcceptChangeParams{
				Patch: commitment.Patch{Title: &title},
			})
			return err
		})
		if err != nil {
			return fmt.Errorf("change racer accept: %w", err)
		}
		if wins > 1 || (wins == 0 && !chaos) {
			return fmt.Errorf("change request %s forked %d times", opened[0].ID, wins)
		}
		time.Sleep(time.Duration(20+rand.Intn(40)) * time.Millisecond)
	}
}

// Updater edits the same draft from many goroutines. Writes are last-wins;
// only refusals with a domain kind are acceptable.
func Updater(ctx context.Context, env *infra.Env, commitmentID string, chaos bool, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		title := fmt.Sprintf("edited %d", rand.Int63())
		if _, err := env.Commitments.Update(ctx, env.Founder, commitmentID, commitment.Patch{Title: &title}); err != nil && !Rejected(err, chaos) {
			return fmt.Errorf("updater: %w", err)
		}
		time.Sleep(time.Duration(15+rand.Intn(35)) * time.Millisecond)
	}
}

// Tamperer tries to rewrite and delete audit events directly. The database
// must refuse every attempt.
func Tamperer(ctx context.Context, env *infra.Env, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		tag, err := env.Pool.Exec(ctx, `UPDATE approval_events SET message = 'tampered' WHERE id = (SELECT id FROM approval_events ORDER BY random() LIMIT 1)`)
		if err == nil && tag.RowsAffected() > 0 {
			return errors.New("tamperer: approval event was updated")
		}
		tag, err = env.Pool.Exec(ctx, `DELETE FROM approval_events WHERE id = (SELECT id FROM approval_events ORDER BY random() LIMIT 1)`)
		if err == nil && tag.RowsAffected() > 0 {
			return errors.New("tamperer: approval event was deleted")
		}
		time.Sleep(time.Duration(50+rand.Intn(50)) * time.Millisecond)
	}
}
