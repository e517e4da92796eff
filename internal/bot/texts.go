package bot

import (
	"fmt"

	"github.com/m3rciful/todobot/core/telegram/format"
	"github.com/m3rciful/todobot/internal/storage"
)

// SourceURL is the repository linked by /code.
const SourceURL = "https://github.com/m3rciful/todobot"

const (
	textAbout = "👋 Hi! I'm your personal task manager. " +
		"My goal is to help you organize your affairs and make managing tasks simple.\n\n" +
		"Here is what I can do for you:\n\n" +
		"➕ *Create tasks*: add new tasks and manage them.\n" +
		"✅ *Track progress*: mark tasks as done to follow your progress.\n" +
		"📋 *Browse tasks*: quick access to your current and completed tasks.\n" +
		"❌ *Delete tasks*: remove finished tasks to keep the list clean.\n\n" +
		"To begin, press /start!"
	textCode        = "The source code of this bot is available on GitHub:"
	textCodeButton  = "Visit the GitHub repository"
	textStartHint   = "To start registration, send /start"
	textMenu        = "🏠 Main menu\nChoose an action:"
	textUseMenu     = "Please use the menu buttons below."
	textNotAllowed  = "Please register first: send /start"
	textTaskMissing = "Task not found."
	textTaskDone    = "Task completed! ✅"
	textTaskDeleted = "Task deleted ❌"
	textNoTasks     = "There are no tasks here yet."
	textUnsupported = "Unsupported action"
	textRateLimited = "Too many requests, please slow down."
	textFailure     = "Something went wrong. Please try again later."

	markerDone = "✅"
	markerOpen = "⏳"
)

// Menu buttons.
const (
	btnCreate          = "➕ Add task"
	btnActual          = "🎯 Current tasks"
	btnCompleted       = "✅ Completed tasks"
	btnDeleteCompleted = "❌ Delete completed"
	btnAll             = "📋 All tasks"
	btnMarkDone        = "✅ Mark as done"
	btnDeleteTask      = "❌ Delete task"
	btnMainMenu        = "🏠 Main menu"
)

func marker(done bool) string {
	if done {
		return markerDone
	}
	return markerOpen
}

func greetingText(name string) string {
	return fmt.Sprintf("Welcome back, %s! 👋\n\n%s", name, textMenu)
}

func taskCardText(t storage.Task) string {
	return fmt.Sprintf("%s - *%s*\n\nTask description:\n%s",
		marker(t.IsDone), format.EscapeMD(t.Name), format.EscapeMD(t.Description))
}

func deletedCompletedText(n int64) string {
	if n == 0 {
		return "There are no completed tasks to delete."
	}
	return fmt.Sprintf("Deleted completed tasks: %d", n)
}
