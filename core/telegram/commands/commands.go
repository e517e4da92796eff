package commands

// Command describes an entry of the bot command menu.
// Handling is routed through the registry's dispatch table.
type Command struct {
	Description string
	// Hidden commands work but are left out of the published menu.
	Hidden  bool
	Aliases []string
}
