package cmd

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/Joelisking/projectx-client/apiclient"
	"github.com/Joelisking/projectx-client/internal/config"
	"github.com/Joelisking/projectx-client/internal/logging"
	"github.com/Joelisking/projectx-client/marketplace"
	"github.com/Joelisking/projectx-client/session"
	"github.com/Joelisking/projectx-client/session/filerepo"
	"github.com/Joelisking/projectx-client/session/redisrepo"
	"github.com/Joelisking/projectx-client/session/tokenstore"
	"github.com/rs/zerolog/log"
)

// app wires the session store, executor and endpoint client for one command.
type app struct {
	cfg     config.Config
	session *session.Manager
	exec    *apiclient.Executor
	market  *marketplace.Client
	closers []func() error
}

func newApp(ctx context.Context, cfg config.Config, notices io.Writer) (*app, error) {
	logger := logging.Setup(cfg.GetLogLevel(), cfg.GetLogPretty())
	a := &app{cfg: cfg}

	repo, tokens, err := a.storage(ctx)
	if err != nil {
		return nil, err
	}

	a.session = session.NewManager(repo, tokens, logger)
	if err := a.session.Rehydrate(ctx); err != nil {
		// a corrupt or unreadable session only costs a new login
		log.Warn().Err(err).Msg("ignoring persisted session")
	}

	a.exec = apiclient.New(cfg.GetBaseURL(), a.session,
		apiclient.WithHTTPClient(&http.Client{Timeout: cfg.GetRequestTimeout()}),
		apiclient.WithTokenStore(tokens),
		apiclient.WithLogger(logger),
		apiclient.WithResponseCache(cfg.GetCacheTTL()),
		apiclient.WithRefreshPath(cfg.GetRefreshPath()),
		apiclient.WithLoginURL(cfg.GetLoginPath()),
	)
	a.exec.OnSessionTerminated(func(t apiclient.Termination) {
		fmt.Fprintf(notices, "Your session has expired. Please log in again (%s).\n", t.RedirectURL)
	})

	a.market = marketplace.New(a.exec, a.session)
	return a, nil
}

func (a *app) storage(ctx context.Context) (session.Repo, session.TokenStore, error) {
	switch a.cfg.GetSessionBackend() {
	case "redis":
		client, err := redisrepo.NewClient(ctx, a.cfg.GetRedisURL(), a.cfg.GetRedisPassword())
		if err != nil {
			return nil, nil, err
		}
		a.closers = append(a.closers, client.Close)
		repo := redisrepo.New(client, a.cfg.GetPersistKey())
		return repo, repo, nil

	default:
		repo, err := filerepo.New(a.cfg.GetSessionFile(), a.cfg.GetSessionKey())
		if err != nil {
			return nil, nil, err
		}
		return repo, tokenstore.NewFileStore(a.cfg.GetTokenFile()), nil
	}
}

func (a *app) Close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			log.Warn().Err(err).Msg("closing")
		}
	}
}
