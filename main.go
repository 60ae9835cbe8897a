package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"SlideToVideo-server/config"
	"SlideToVideo-server/logger"
	"SlideToVideo-server/models"
	"SlideToVideo-server/pipeline"
	"SlideToVideo-server/routers"
	"SlideToVideo-server/routers/api"
	"SlideToVideo-server/service"
)

var configPath string

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
	}

	root := &cobra.Command{
		Use:           "slidetovideo",
		Short:         "Turn slide decks into narrated videos",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config/config.yaml", "path to the YAML config file")
	root.AddCommand(newServeCommand(), newWorkerCommand(), newRenderCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func setup() (*config.Config, error) {
	if err := config.InitConfig(configPath); err != nil {
		return nil, err
	}
	cfg := config.AppConfig
	logger.Configure(os.Stderr, cfg.Log.JSON)
	logger.SetLevel(logger.ParseLevel(cfg.Log.Level))
	return cfg, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func newServeCommand() *cobra.Command {
	var inline bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API with an embedded task worker",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := setup()
			if err != nil {
				return err
			}
			ctx, stop := signalContext()
			defer stop()

			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			processor := service.NewProcessor(a.pipeline, a.store)
			var queue service.Enqueuer
			if inline || cfg.Redis.Addr == "" {
				queue = &service.InlineQueue{Processor: processor, Base: ctx}
				logger.InfoCF("main", "running tasks in-process", nil)
			} else {
				aq := service.NewAsynqQueue(cfg.Redis.Addr, cfg.Redis.Password, cfg.Pipeline.AssembleTimeout*2)
				defer aq.Close()
				queue = aq
				srv, err := processor.StartProcessor(cfg.Redis.Addr, cfg.Redis.Password, cfg.Pipeline.Workers)
				if err != nil {
					return err
				}
				defer srv.Shutdown()
			}

			h := &api.Handler{
				Pipeline:  a.pipeline,
				Store:     a.store,
				Queue:     queue,
				Processor: processor,
				Hub:       a.hub,
				Speech:    a.speech,
			}
			r := routers.InitRouter(h, cfg.Server.StaticURL, cfg.Storage.Root)
			server := &http.Server{Addr: cfg.Server.Port, Handler: r}

			errCh := make(chan error, 1)
			go func() {
				logger.InfoCF("main", "server starting", map[string]any{"addr": cfg.Server.Port})
				errCh <- server.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
			case <-ctx.Done():
				logger.InfoCF("main", "shutting down", nil)
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&inline, "inline", false, "run tasks in-process even when redis is configured")
	return cmd
}

func newWorkerCommand() *cobra.Command {
	var concurrency int
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Consume pipeline tasks from the redis queue",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := setup()
			if err != nil {
				return err
			}
			if cfg.Redis.Addr == "" {
				return errors.New("worker needs redis.addr")
			}
			ctx, stop := signalContext()
			defer stop()

			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if concurrency <= 0 {
				concurrency = cfg.Pipeline.Workers
			}
			srv, err := service.NewProcessor(a.pipeline, a.store).StartProcessor(cfg.Redis.Addr, cfg.Redis.Password, concurrency)
			if err != nil {
				return err
			}
			<-ctx.Done()
			srv.Shutdown()
			return nil
		},
	}
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "parallel tasks (defaults to pipeline.workers)")
	return cmd
}

func newRenderCommand() *cobra.Command {
	var (
		skip        []int
		talkingHead bool
		avatar      string
		voice       string
		fallback    bool
	)
	cmd := &cobra.Command{
		Use:   "render <deck>",
		Short: "Run the whole pipeline on one deck and print the reports",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			cfg, err := setup()
			if err != nil {
				return err
			}
			ctx, stop := signalContext()
			defer stop()

			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			pres, err := a.pipeline.IngestPath(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("presentation %s: %d slides\n", pres.ID, len(pres.Slides))

			if avatar != "" {
				if err := setAvatar(ctx, a.pipeline, pres.ID, avatar); err != nil {
					return err
				}
			}

			opts := pipeline.RunOptions{UseTalkingHead: talkingHead, Skip: skip}
			if voice != "" || fallback {
				opts.TTS = &models.TTSParams{Voice: voice, ForceFallback: fallback}
			}
			res, err := a.pipeline.Run(ctx, pres.ID, opts)
			if res != nil {
				for i := range res.Reports {
					fmt.Println(res.Reports[i].Summary())
				}
				if res.Assembly != nil && res.Assembly.Video != nil {
					fmt.Printf("video: %s (%.1fs)\n", res.Assembly.Video.URL, res.Assembly.Video.Duration)
				}
			}
			return err
		},
	}
	cmd.Flags().IntSliceVar(&skip, "skip", nil, "slide indices to leave out of the video")
	cmd.Flags().BoolVar(&talkingHead, "talking-head", false, "overlay an animated presenter")
	cmd.Flags().StringVar(&avatar, "avatar", "", "portrait image for the talking head")
	cmd.Flags().StringVar(&voice, "voice", "", "voice name passed to the TTS engine")
	cmd.Flags().BoolVar(&fallback, "force-fallback", false, "always use the universal TTS engine")
	return cmd
}

func setAvatar(ctx context.Context, p *pipeline.Pipeline, id, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = p.SetAvatar(ctx, id, path, f)
	return err
}
