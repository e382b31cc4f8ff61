// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package run

import (
	"net/http"

	"github.com/spf13/cobra"

	"github.com/luxfi/database/memdb"
	"github.com/luxfi/log"

	"github.com/luxfi/rwavm"
)

func Command() *cobra.Command {
	c := &cobra.Command{
		Use:   "rwavm",
		Short: "Runs the real-world asset tokenization VM",
		RunE:  runFunc,
	}
	AddFlags(c.Flags())
	return c
}

func runFunc(c *cobra.Command, args []string) error {
	flags, err := ParseFlags(c.Flags(), args)
	if err != nil {
		return err
	}

	logger := log.NewLogger("rwavm")
	vm, err := rwavm.New(memdb.New(), logger, flags.Config)
	if err != nil {
		return err
	}
	defer func() {
		_ = vm.Shutdown(c.Context())
	}()

	handlers, err := vm.CreateHandlers(c.Context())
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	for path, handler := range handlers {
		mux.Handle(path, handler)
	}

	logger.Info("serving", "addr", flags.HTTPAddr)
	return http.ListenAndServe(flags.HTTPAddr, mux)
}
