package cli

import (
	"context"
	"encoding/json"
	"os"

	"github.com/tugbuild/tug/internal/config"
)

// Represents the 'tug parse' command.
type ParseCmd struct {
	File   string `short:"f" default:"Tugfile" type:"path" help:"Tugfile to parse."`
	Strict bool   `help:"Report malformed lines instead of skipping them."`
}

// Executes the parse command, printing the instruction list as JSON.
func (c *ParseCmd) Run(ctx context.Context, cfg *config.Config) error {
	instructions, err := readTugfile(c.File, c.Strict || cfg.Strict)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(instructions)
}
