package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"slideConverter/api/config"
	"slideConverter/api/probe"
)

var probeCmd = &cobra.Command{
	Use:   "probe <file.pdf>",
	Short: "Print the page count of a PDF the way the upload endpoint sees it",
	Args:  cobra.ExactArgs(1),
	RunE:  runProbe,
}

func runProbe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}

	counter := probe.NewChain(logger).Add("pdfcpu", probe.NewPDFCPUCounter())
	if dispatcher, err := newDispatcher(cfg, logger); err == nil {
		counter.Add("worker", dispatcher)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ProbeTimeout)
	defer cancel()

	n, err := counter.PageCount(ctx, data)
	if err != nil {
		return fmt.Errorf("count pages of %s: %w", args[0], err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d pages\n", args[0], n)
	return nil
}
