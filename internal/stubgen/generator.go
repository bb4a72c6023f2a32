package stubgen

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/cloudgather/cloudgather/internal/model"
	"github.com/cloudgather/cloudgather/internal/protect"
	"github.com/cloudgather/cloudgather/internal/remotehost"
)

// Generator executes stub-task runs (§4.3), satisfying
// scheduler.StubRunner. NewClient is overridable so tests can inject a fake
// remotehost.Client instead of dialing a real service.
type Generator struct {
	Logger    *zap.SugaredLogger
	NewClient func(creds model.RemoteCredentials, logger *zap.SugaredLogger) (remotehost.Client, error)
}

// defaultNewClient builds an httpClient and logs in when username/password
// credentials are supplied; a bare token skips the login round-trip.
func defaultNewClient(creds model.RemoteCredentials, logger *zap.SugaredLogger) (remotehost.Client, error) {
	client := remotehost.NewHTTPClient(creds.URL, creds.PublicURL, logger)

	if creds.User != "" && creds.Password != "" {
		if _, err := client.Login(context.Background(), creds.URL, creds.User, creds.Password); err != nil {
			return nil, fmt.Errorf("stubgen: login: %w", err)
		}
	}

	return client, nil
}

// Run implements scheduler.StubRunner (§4.1 "Execution wrapper (stub
// variant)"): lists the remote tree, materializes stubs, applies the
// orphan diff under smart-protection, and runs the server-delete echo.
func (g *Generator) Run(ctx context.Context, task model.StubTask) (model.Stats, error) {
	var stats model.Stats

	newClient := g.NewClient
	if newClient == nil {
		newClient = defaultNewClient
	}

	client, err := newClient(task.Credentials, g.Logger)
	if err != nil {
		return stats, err
	}

	entries, raw, err := listRemote(ctx, client, task.Source, task.ExtFilter)
	if err != nil {
		return stats, err
	}

	gate, err := protect.Load(task.Target, task.Protection)
	if err != nil {
		return stats, fmt.Errorf("stubgen: load protection state: %w", err)
	}

	existing, err := existingStubs(task.Target)
	if err != nil {
		return stats, err
	}

	generated := make(map[string]bool, len(entries))

	for _, e := range entries {
		dest := targetPath(e, task.Source, task.Target, task.Flags.Flatten)

		rel, relErr := filepath.Rel(task.Target, dest)
		if relErr == nil {
			generated[filepath.ToSlash(rel)] = true
		}

		content := stubContent(e, task.Credentials.URL, task.Credentials.PublicURL, task.ContentMode)

		result, err := materializeOne(dest, content, task.Flags.Overwrite)

		switch {
		case err != nil:
			stats.Add(model.OutcomeFailed)
			g.Logger.Warnw("stub materialize failed", "task_id", task.ID, "path", dest, "error", err)
		case result == materializeSkippedExists:
			stats.Add(model.OutcomeSkippedUnchanged)
		default:
			stats.Add(model.OutcomeSuccess)
		}

		for _, sidecarErr := range materializeSidecars(ctx, client, e, raw, dest, task.Flags) {
			g.Logger.Warnw("stub sidecar copy failed", "task_id", task.ID, "error", sidecarErr)
		}
	}

	if task.Flags.SyncServerDeletes {
		removed, diffErrs := applyOrphanDiff(gate, task.Target, existing, generated)
		for _, derr := range diffErrs {
			g.Logger.Warnw("orphan stub removal failed", "task_id", task.ID, "error", derr)
		}

		if removed > 0 {
			g.Logger.Infow("removed orphaned stubs", "task_id", task.ID, "count", removed)
		}
	}

	if err := gate.Save(); err != nil {
		g.Logger.Warnw("save protection state failed", "task_id", task.ID, "error", err)
	}

	if task.Flags.SyncLocalDeletesToServer {
		echoed, echoErr := serverDeleteEcho(ctx, client, entries, task.Source, task.Target, task.Flags.Flatten, task.ExtFilter, task.Protection.Threshold)
		if echoErr != nil {
			g.Logger.Warnw("server-delete echo aborted", "task_id", task.ID, "error", echoErr)
		} else if echoed > 0 {
			g.Logger.Infow("echoed local stub deletions to remote", "task_id", task.ID, "count", echoed)
		}
	}

	return stats, nil
}
