package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-go-golems/coder/pkg/agents"
	"github.com/go-go-golems/coder/pkg/conversation"
	"github.com/go-go-golems/coder/pkg/events"
	"github.com/go-go-golems/coder/pkg/inference/engine"
	"github.com/go-go-golems/coder/pkg/inference/engine/factory"
	"github.com/go-go-golems/coder/pkg/inference/middleware"
	"github.com/go-go-golems/coder/pkg/server"
	"github.com/go-go-golems/coder/pkg/session"
	"github.com/go-go-golems/coder/pkg/store"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the ask and edit endpoints over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx)
		},
	}

	fs := cmd.Flags()
	fs.String("listen-address", ":8000", "Address the HTTP server listens on")
	fs.Int64("max-body-bytes", server.DefaultMaxBodyBytes, "Maximum size of a request body")
	fs.Duration("request-timeout", 5*time.Minute, "Timeout of one HTTP request (0 disables it)")
	addAIFlags(fs)
	cobra.CheckErr(viper.BindPFlags(fs))

	return cmd
}

func buildAgents() (agents.Agent, agents.Agent, error) {
	base, err := baseStepSettings()
	if err != nil {
		return nil, nil, err
	}

	engines := map[conversation.Persona]engine.Engine{}
	for _, persona := range []conversation.Persona{conversation.PersonaAsk, conversation.PersonaEdit} {
		ss, err := personaStepSettings(base, persona)
		if err != nil {
			return nil, nil, err
		}
		logger := log.Logger.With().Str("persona", string(persona)).Logger()
		f := factory.NewStandardEngineFactory(middleware.NewLoggingMiddleware(logger))
		e, err := f.CreateEngine(ss)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "%s engine", persona)
		}
		log.Info().Fields(ss.GetMetadata()).Str("persona", string(persona)).Msg("persona configured")
		engines[persona] = e
	}

	editAgent, err := agents.NewEditAgent(engines[conversation.PersonaEdit])
	if err != nil {
		return nil, nil, err
	}
	return agents.NewAskAgent(engines[conversation.PersonaAsk]), editAgent, nil
}

func runServe(ctx context.Context) error {
	askAgent, editAgent, err := buildAgents()
	if err != nil {
		return err
	}

	storeSettings, err := storeSettingsFromViper()
	if err != nil {
		return err
	}
	st, err := store.Open(ctx, storeSettings)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close store")
		}
	}()

	router, err := events.NewEventRouter(events.WithVerbose(viper.GetBool("verbose")))
	if err != nil {
		return err
	}
	router.AddHandler("log-session-events", events.TopicSession, events.LogEventsHandler)

	publisher := events.NewPublisherManager()
	publisher.SubscribePublisher(events.TopicSession, router.Publisher)

	svc, err := session.NewService(st, askAgent, editAgent, session.WithPublisher(publisher))
	if err != nil {
		return err
	}

	srv := server.NewServer(svc,
		server.WithPinger(st),
		server.WithMaxBodyBytes(viper.GetInt64("max-body-bytes")),
		server.WithRequestTimeout(viper.GetDuration("request-timeout")),
	)

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return router.Run(ctx)
	})
	eg.Go(func() error {
		select {
		case <-router.Running():
		case <-ctx.Done():
			return nil
		}
		return srv.Run(ctx, viper.GetString("listen-address"))
	})
	eg.Go(func() error {
		<-ctx.Done()
		return router.Close()
	})

	err = eg.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info().Msg("coder stopped")
	return nil
}
