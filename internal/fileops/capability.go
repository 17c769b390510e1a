package fileops

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/glowos/glowd/internal/capability"
)

// Capability exposes scoped file operations through the tool interface.
type Capability struct {
	ops    *Ops
	logger *slog.Logger
}

// NewCapability wraps an Ops as a registrable capability.
func NewCapability(ops *Ops, logger *slog.Logger) *Capability {
	return &Capability{ops: ops, logger: logger}
}

func (c *Capability) Name() string { return "fileops" }

func (c *Capability) Intents() map[string]string {
	return map[string]string{
		"search_files":  "Search for files and folders by name",
		"list_files":    "List the contents of a directory",
		"move_file":     "Move a file to a new location",
		"get_file_info": "Show size and modification time for a path",
		"bulk_rename":   "Rename a batch of files to a new name",
	}
}

func (c *Capability) Run(ctx context.Context, intent string, args capability.Args, sink capability.ProgressSink) (capability.Result, error) {
	switch intent {
	case "search_files":
		return c.search(args)
	case "list_files":
		return c.list(args)
	case "move_file":
		return c.move(args)
	case "get_file_info":
		return c.info(args)
	case "bulk_rename":
		return c.bulkRename(args)
	default:
		return capability.Errorf("unknown fileops intent %q", intent), nil
	}
}

// searchPayload is the structured result the frontend renders as a
// file list.
type searchPayload struct {
	Query   string  `json:"query"`
	Matches []Match `json:"matches"`
	Count   int     `json:"count"`
}

func (c *Capability) search(args capability.Args) (capability.Result, error) {
	query := args.String("query")
	if query == "" {
		return capability.Errorf("what should I look for?"), nil
	}
	matches, err := c.ops.Search(query, args.String("location_hint"))
	if err != nil {
		return capability.Result{}, err
	}
	return capability.StructuredMedia("file_search", searchPayload{
		Query:   query,
		Matches: matches,
		Count:   len(matches),
	}), nil
}

func (c *Capability) list(args capability.Args) (capability.Result, error) {
	dir := args.String("directory")
	if dir == "" {
		return capability.Errorf("which directory should I list?"), nil
	}
	entries, err := c.ops.List(dir)
	if err != nil {
		return capability.Result{}, err
	}
	return capability.StructuredMedia("file_list", entries), nil
}

func (c *Capability) move(args capability.Args) (capability.Result, error) {
	src, dst := args.String("source"), args.String("destination")
	if src == "" || dst == "" {
		return capability.Errorf("I need both a source and a destination"), nil
	}
	if err := c.ops.Move(src, dst); err != nil {
		return capability.Result{}, err
	}
	return capability.ChatText(fmt.Sprintf("Moved %s to %s.", src, dst)), nil
}

func (c *Capability) info(args capability.Args) (capability.Result, error) {
	path := args.String("path")
	if path == "" {
		return capability.Errorf("which file should I look at?"), nil
	}
	m, err := c.ops.Info(path)
	if err != nil {
		return capability.Result{}, err
	}
	return capability.StructuredMedia("file_info", m), nil
}

func (c *Capability) bulkRename(args capability.Args) (capability.Result, error) {
	results, err := c.ops.BulkRename(args.String("pattern"), args.String("replacement"))
	if err != nil {
		return capability.Result{}, err
	}
	return capability.ChatText(fmt.Sprintf("Renamed %d files.", len(results))), nil
}
