package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/tokenmail/tokenmail/internal/config"
	"github.com/tokenmail/tokenmail/internal/email"
	"github.com/tokenmail/tokenmail/internal/logger"
	"github.com/tokenmail/tokenmail/internal/notifier"
	"github.com/tokenmail/tokenmail/internal/sheets"
	"github.com/tokenmail/tokenmail/internal/token"
)

func newRootCmd() *cobra.Command {
	var dump bool

	rootCmd := &cobra.Command{
		Use:           "tokenmail",
		Short:         "Mail the issued Vonage JWT (jwt.txt) to the configured recipient",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSend(cmd, dump)
		},
	}
	rootCmd.Flags().BoolVar(&dump, "dump", false, "print the MIME message instead of sending it")

	sendCmd := &cobra.Command{
		Use:   "send",
		Short: "Send jwt.txt to MAIL_TO (default command)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSend(cmd, dump)
		},
	}
	sendCmd.Flags().BoolVar(&dump, "dump", false, "print the MIME message instead of sending it")

	generateCmd := &cobra.Command{
		Use:   "generate",
		Short: "Issue a Vonage JWT, save it to jwt.txt and record it in the spreadsheet",
		Args:  cobra.NoArgs,
		RunE:  runGenerate,
	}

	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(generateCmd)
	return rootCmd
}

func main() {
	// A local .env is optional; real environment variables take precedence.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func runSend(cmd *cobra.Command, dump bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)

	if dump {
		if err := cfg.Mail.Validate(); err != nil {
			return err
		}
		msg, err := notifier.ComposeMessage(cfg.Mail.To, notifier.AttachmentFile)
		if err != nil {
			return err
		}
		raw, err := email.BuildMIME(cfg.Mail.Username, "", msg)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(raw)
		return err
	}

	n := notifier.New(notifier.NewSender, log, cmd.OutOrStdout())
	return n.Run(cmd.Context(), cfg.Mail, notifier.AttachmentFile)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)

	if err := cfg.Token.Validate(); err != nil {
		return err
	}

	issuer, err := token.NewIssuer(cfg.Token.ApplicationID, cfg.Token.PrivateKey)
	if err != nil {
		return err
	}

	now := time.Now()
	tok, err := issuer.Issue(now)
	if err != nil {
		return err
	}
	if err := token.WriteFile(notifier.AttachmentFile, tok); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✅ JWT 생성 완료! → %s 저장\n", notifier.AttachmentFile)

	if !cfg.Sheet.Enabled() {
		log.Warn().Msg("spreadsheet settings not present, skipping sheet update")
		return nil
	}

	recorder, err := sheets.New(cmd.Context(), cfg.Sheet, log)
	if err != nil {
		return err
	}
	if err := recorder.Record(cmd.Context(), tok, now); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✅ 시트 %s 업데이트 완료\n", sheets.ValueRange)
	return nil
}
