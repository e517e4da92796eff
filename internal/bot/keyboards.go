package bot

import (
	"github.com/m3rciful/todobot/core/telegram/callbacks"
	"github.com/m3rciful/todobot/core/telegram/keyboard"
	"github.com/m3rciful/todobot/internal/storage"

	tele "gopkg.in/telebot.v4"
)

// Callback tokens carried by inline buttons.
const (
	ActionMainMenu             callbacks.Action = "main_menu"
	ActionActualTasks          callbacks.Action = "actual_user_tasks"
	ActionCompletedTasks       callbacks.Action = "completed_user_tasks"
	ActionAllTasks             callbacks.Action = "all_user_tasks"
	ActionDeleteCompletedTasks callbacks.Action = "delete_completed_tasks"
	ActionCreateTask           callbacks.Action = "create_new_task"
	ActionTask                 callbacks.Action = "task"
	ActionMarkTaskDone         callbacks.Action = "mark_task_done"
	ActionDeleteTask           callbacks.Action = "delete_task"
)

var callbackData = callbacks.NewParser(
	[]callbacks.Action{
		ActionMainMenu,
		ActionActualTasks,
		ActionCompletedTasks,
		ActionAllTasks,
		ActionDeleteCompletedTasks,
		ActionCreateTask,
	},
	map[callbacks.Action]string{
		ActionTask:         "task_",
		ActionMarkTaskDone: "mark_task_done_",
		ActionDeleteTask:   "delete_task_",
	},
)

func mainMenuMarkup() *tele.ReplyMarkup {
	return keyboard.InlineButtonsRows(
		[]keyboard.InlineBtn{{Text: btnCreate, Data: string(ActionCreateTask)}},
		[]keyboard.InlineBtn{
			{Text: btnActual, Data: string(ActionActualTasks)},
			{Text: btnCompleted, Data: string(ActionCompletedTasks)},
		},
		[]keyboard.InlineBtn{
			{Text: btnAll, Data: string(ActionAllTasks)},
			{Text: btnDeleteCompleted, Data: string(ActionDeleteCompletedTasks)},
		},
	)
}

func taskMenuMarkup(taskID int64) *tele.ReplyMarkup {
	return keyboard.InlineButtonsRows(
		[]keyboard.InlineBtn{
			{Text: btnMarkDone, Data: callbackData.Build(ActionMarkTaskDone, taskID)},
			{Text: btnDeleteTask, Data: callbackData.Build(ActionDeleteTask, taskID)},
		},
		[]keyboard.InlineBtn{{Text: btnMainMenu, Data: string(ActionMainMenu)}},
	)
}

func taskListMarkup(tasks []storage.Task) *tele.ReplyMarkup {
	buttons := make([]keyboard.InlineBtn, 0, len(tasks)+1)
	for _, t := range tasks {
		buttons = append(buttons, keyboard.InlineBtn{
			Text: marker(t.IsDone) + " " + t.Name,
			Data: callbackData.Build(ActionTask, t.ID),
		})
	}
	buttons = append(buttons, keyboard.InlineBtn{Text: btnMainMenu, Data: string(ActionMainMenu)})
	return keyboard.InlineButtons(buttons)
}

func codeMarkup() *tele.ReplyMarkup {
	return keyboard.InlineButtons([]keyboard.InlineBtn{{Text: textCodeButton, URL: SourceURL}})
}
