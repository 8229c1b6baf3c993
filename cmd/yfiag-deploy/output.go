package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/yfiag/yfiag-deploy/internal/deploy"
	"github.com/yfiag/yfiag-deploy/internal/preflight"
	"github.com/yfiag/yfiag-deploy/internal/record"
)

// Terminal colors. fatih/color disables them when stdout is not a TTY.
var (
	colorRed    = color.New(color.FgRed).SprintFunc()
	colorGreen  = color.New(color.FgGreen).SprintFunc()
	colorYellow = color.New(color.FgYellow).SprintFunc()
	colorBold   = color.New(color.Bold).SprintFunc()
)

// printJSON outputs data as formatted JSON.
func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printError prints an error message.
func printError(err error) {
	fmt.Fprintf(os.Stderr, "%s %s\n", colorRed("Error:"), err.Error())
}

// printTable renders rows under a header.
func printTable(w io.Writer, header []string, rows [][]string) {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.AppendBulk(rows)
	table.Render()
}

// printProgress reports a confirmed step.
func printProgress(w io.Writer) deploy.ProgressCallback {
	return func(step deploy.StepResult, index, total int) {
		detail := step.TxHash.Hex()
		if step.Kind == deploy.KindDeploy {
			detail = step.Address.Hex()
		}
		fmt.Fprintf(w, "%s [%d/%d] %s %s\n", colorGreen("✓"), index+1, total, step.Name, detail)
	}
}

// printChecks reports pre-flight results.
func printChecks(w io.Writer, resp *preflight.Response) {
	fmt.Fprintf(w, "%s %s (chain %d)\n", colorBold("Network:"), resp.Network, resp.ChainID)
	fmt.Fprintf(w, "%s %s\n", colorBold("Deployer:"), resp.DeployerAddress)
	for _, check := range resp.Checks {
		mark := colorGreen("✓")
		if !check.Passed {
			mark = colorRed("✗")
		}
		fmt.Fprintf(w, "%s %s\n", mark, check.Message)
	}
}

// printDeployments lists the deployment addresses of a run.
func printDeployments(w io.Writer, r *record.Record) {
	rows := make([][]string, 0, len(r.Contracts))
	for _, c := range r.Contracts {
		rows = append(rows, []string{c.Name, c.Address, c.TxHash, fmt.Sprintf("%d", c.BlockNumber)})
	}
	if len(rows) == 0 {
		fmt.Fprintln(w, colorYellow("No contracts were deployed"))
		return
	}
	printTable(w, []string{"Contract", "Address", "Tx Hash", "Block"}, rows)
}
