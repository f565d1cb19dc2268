package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/codestream/internal/delay"
)

func scheduleCmd() *cli.Command {
	var (
		k     int
		steps int
	)
	return &cli.Command{
		Name:  "schedule",
		Usage: "Print which history index each codebook reads and writes per step",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:        "codebooks",
				Aliases:     []string{"k"},
				Value:       4,
				Usage:       "number of codebooks",
				Destination: &k,
			},
			&cli.IntFlag{
				Name:        "steps",
				Aliases:     []string{"n"},
				Value:       8,
				Usage:       "decode steps to show",
				Destination: &steps,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			if steps < 0 {
				return cli.Exit("error: --steps must not be negative", 1)
			}
			if err := renderSchedule(os.Stdout, k, steps); err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			return nil
		},
	}
}

// renderSchedule prints one row per step; each cell reads "input -> predicted"
// with "pad" for inputs before history starts and "-" where the codebook has
// not started.
func renderSchedule(w io.Writer, k, steps int) error {
	p, err := delay.New(k)
	if err != nil {
		return err
	}

	header := make([]string, 0, k+1)
	header = append(header, "STEP")
	for c := 0; c < k; c++ {
		header = append(header, fmt.Sprintf("CB%d +%d", c, p.Delay(c)))
	}

	data := make([][]string, 0, steps)
	for t := 0; t < steps; t++ {
		row := make([]string, 0, k+1)
		row = append(row, strconv.Itoa(t))
		for c := 0; c < k; c++ {
			row = append(row, scheduleCell(p, t, c))
		}
		data = append(data, row)
	}

	footer := make([]string, 0, k+1)
	footer = append(footer, "COUNT")
	for c := 0; c < k; c++ {
		footer = append(footer, strconv.Itoa(p.ExpectedCount(steps, c)))
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetFooter(footer)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	table.AppendBulk(data)
	table.Render()

	_, err = fmt.Fprintf(w, "aligned frame length: %d\n", p.ExpectedCount(steps, k-1))
	return err
}

func scheduleCell(p *delay.Pattern, t, c int) string {
	if !p.Started(t, c) {
		return "-"
	}
	in, pred := p.Indices(t, c)
	src := "pad"
	if in >= 0 {
		src = strconv.Itoa(in)
	}
	return src + " -> " + strconv.Itoa(pred)
}
