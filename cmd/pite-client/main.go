// Command pite-client is a thin CLI wrapper over measure.Client: it dials
// a running pite-server over mutual TLS and prints the result of one
// call: get-insns and run-experiment render a table, get-num-ports and
// get-description print a plain line (§6 "CLI surface"). It has no
// gen_code subcommand.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/sarchlab/pite/measure"
)

func main() {
	var (
		host    string
		port    int
		sslpath string
	)

	root := &cobra.Command{
		Use:   "pite-client",
		Short: "Query a running pite-server measurement service",
	}
	root.PersistentFlags().StringVar(&host, "host", "127.0.0.1", "pite-server host")
	root.PersistentFlags().IntVar(&port, "port", 8443, "pite-server port")
	root.PersistentFlags().StringVar(&sslpath, "sslpath", "/tmp/pite-ssl", "directory holding the client's TLS material")

	newClient := func() (*measure.Client, error) {
		material, err := measure.Bootstrap(sslpath)
		if err != nil {
			return nil, fmt.Errorf("pite-client: loading TLS material: %w", err)
		}
		return measure.NewClient(fmt.Sprintf("https://%s:%d", host, port), material)
	}

	root.AddCommand(&cobra.Command{
		Use:   "get-insns",
		Short: "List the instructions the server exposes",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			insns, err := client.GetInsns(context.Background())
			if err != nil {
				return err
			}
			t := table.NewWriter()
			t.SetOutputMirror(os.Stdout)
			t.AppendHeader(table.Row{"#", "Instruction"})
			for i, name := range insns {
				t.AppendRow(table.Row{i, name})
			}
			t.Render()
			return nil
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "get-num-ports",
		Short: "Print the server's reported port count",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			n, err := client.GetNumPorts(context.Background())
			if err != nil {
				return err
			}
			fmt.Println(n)
			return nil
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "get-description",
		Short: "Print the server's backend description",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			desc, err := client.GetDescription(context.Background())
			if err != nil {
				return err
			}
			fmt.Println(desc)
			return nil
		},
	})

	var insns []string
	runExp := &cobra.Command{
		Use:   "run-experiment",
		Short: "Measure an instruction sequence",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			res, err := client.RunExperiment(context.Background(), measure.RunExperimentRequest{Insns: insns})
			if err != nil {
				return err
			}

			t := table.NewWriter()
			t.SetOutputMirror(os.Stdout)
			t.AppendHeader(table.Row{"Field", "Value"})
			for k, v := range res {
				t.AppendRow(table.Row{k, v})
			}
			t.Render()
			return nil
		},
	}
	runExp.Flags().StringSliceVar(&insns, "insn", nil, "instruction name, repeatable, in sequence order")
	root.AddCommand(runExp)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
