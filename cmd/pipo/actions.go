// Copyright 2026 © The PIPO Agent Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
)

// runActions lists the actions a plan may use, including MCP tools when
// servers are configured. MCP connection failures are reported but do not
// hide the built-in actions.
func runActions(_ context.Context, flags globalFlags, args []string) {
	if len(args) > 0 {
		fatal(fmt.Errorf("actions takes no arguments"))
	}

	reg, err := buildCatalog(flags.ConfigPath)
	if err != nil {
		fatal(err)
	}

	specs := reg.List()
	if flags.JSON {
		printJSON(map[string]any{"actions": specs})
		return
	}

	if len(specs) == 0 {
		fmt.Println("No actions registered")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tPARAMS\tDESCRIPTION")
	for _, s := range specs {
		required := 0
		for _, p := range s.Params {
			if p.Required {
				required++
			}
		}
		fmt.Fprintf(w, "%s\t%d (%d required)\t%s\n",
			s.Name, len(s.Params), required, truncateString(s.Description, 60))
	}
	w.Flush()
}
