package domain

// Intent is the closed set of user goals the voice pipeline understands.
type Intent string

const (
	IntentCreateTask    Intent = "create_task"
	IntentUpdateTask    Intent = "update_task"
	IntentCompleteTask  Intent = "complete_task"
	IntentCreateProject Intent = "create_project"
	IntentUpdateProject Intent = "update_project"
	IntentAssignTask    Intent = "assign_task"
	IntentListTasks     Intent = "list_tasks"
	IntentListProjects  Intent = "list_projects"
	IntentGetStatus     Intent = "get_status"
	IntentHelp          Intent = "help"
	IntentUnknown       Intent = "unknown"
)

// Intents returns the closed vocabulary of recognizable intents,
// excluding IntentUnknown.
func Intents() []Intent {
	return []Intent{
		IntentCreateTask,
		IntentUpdateTask,
		IntentCompleteTask,
		IntentCreateProject,
		IntentUpdateProject,
		IntentAssignTask,
		IntentListTasks,
		IntentListProjects,
		IntentGetStatus,
		IntentHelp,
	}
}

// ParseIntent maps a raw string to an Intent, falling back to IntentUnknown
// for anything outside the vocabulary.
func ParseIntent(s string) Intent {
	for _, intent := range Intents() {
		if string(intent) == s {
			return intent
		}
	}
	return IntentUnknown
}
