package voice

// CatalogEntry describes one supported voice command for discovery
// surfaces (help intent, REST catalog).
type CatalogEntry struct {
	Command     string `json:"command"`
	Description string `json:"description"`
	Example     string `json:"example"`
}

var catalog = []CatalogEntry{
	{
		Command:     "create task",
		Description: "Create a new task",
		Example:     "Create a task called review quarterly report",
	},
	{
		Command:     "complete task",
		Description: "Mark a task as completed",
		Example:     "Complete the task review quarterly report",
	},
	{
		Command:     "create project",
		Description: "Create a new project",
		Example:     "Create a project called website redesign",
	},
	{
		Command:     "list tasks",
		Description: "Show all of your tasks",
		Example:     "Show me my tasks",
	},
	{
		Command:     "list projects",
		Description: "Show all of your projects",
		Example:     "Show me my projects",
	},
	{
		Command:     "status",
		Description: "Check the status of a task or project",
		Example:     "What is the status of website redesign",
	},
	{
		Command:     "assign task",
		Description: "Assign a task to someone",
		Example:     "Assign the review task to Sarah",
	},
	{
		Command:     "help",
		Description: "List the available voice commands",
		Example:     "What can I say",
	},
}

// Catalog returns the supported command list.
func Catalog() []CatalogEntry {
	out := make([]CatalogEntry, len(catalog))
	copy(out, catalog)
	return out
}
