package bot

import (
	"context"
	"log/slog"

	"github.com/m3rciful/todobot/core/logger"
	"github.com/m3rciful/todobot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/todobot/core/telegram/helpers"
	"github.com/m3rciful/todobot/internal/storage"

	tele "gopkg.in/telebot.v4"
)

// taskView is one of the filtered task lists reachable from the main menu.
type taskView struct {
	action callbacks.Action
	filter storage.Filter
	title  string
}

var taskViews = []taskView{
	{action: ActionActualTasks, filter: storage.FilterIncomplete, title: "🎯 Current tasks:"},
	{action: ActionCompletedTasks, filter: storage.FilterCompleted, title: "✅ Completed tasks:"},
	{action: ActionAllTasks, filter: storage.FilterAll, title: "📋 All tasks:"},
}

// listTasks renders view as a message with one button per task and a way back to the menu.
func (b *Bot) listTasks(v taskView) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx := tghelpers.BuildContext(c)
		ownerID, ok, err := b.owner(ctx, c)
		if err != nil || !ok {
			return b.callbackFailure(c, err)
		}
		tasks, err := b.store.ListTasks(ctx, ownerID, v.filter)
		if err != nil {
			return b.callbackFailure(c, err)
		}
		logger.Debug(ctx, "service.tasks", "task.list",
			slog.Int64("owner_id", ownerID),
			slog.String("filter", string(v.filter)),
			slog.Int("count", len(tasks)),
		)

		text := v.title
		if len(tasks) == 0 {
			text += "\n\n" + textNoTasks
		}
		return tghelpers.EditOrSendText(c, text, taskListMarkup(tasks))
	}
}

func (b *Bot) onMainMenu(c tele.Context) error {
	return tghelpers.EditOrSendText(c, textMenu, mainMenuMarkup())
}

func (b *Bot) onCreateTask(c tele.Context) error {
	reply, err := b.engine.StartTaskCreation(tghelpers.BuildContext(c), senderID(c))
	_ = callbacks.Answer(c)
	if sendErr := b.sendReply(c, reply); sendErr != nil && err == nil {
		err = sendErr
	}
	return err
}

func (b *Bot) onTaskCard(c tele.Context) error {
	task, ok, err := b.ownedTask(c)
	if err != nil {
		return b.callbackFailure(c, err)
	}
	if !ok {
		return b.taskMissing(c)
	}
	return tghelpers.EditOrSendMD(c, taskCardText(task), taskMenuMarkup(task.ID))
}

// onMarkDone completes the task and shows its refreshed card.
func (b *Bot) onMarkDone(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	task, ok, err := b.ownedTask(c)
	if err != nil {
		return b.callbackFailure(c, err)
	}
	if !ok {
		return b.taskMissing(c)
	}
	if err := b.store.MarkTaskComplete(ctx, task.ID); err != nil {
		return b.callbackFailure(c, err)
	}
	_ = callbacks.Answer(c, &tele.CallbackResponse{Text: textTaskDone, ShowAlert: true})

	task.IsDone = true
	return tghelpers.EditOrSendMD(c, taskCardText(task), taskMenuMarkup(task.ID))
}

func (b *Bot) onDeleteTask(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	task, ok, err := b.ownedTask(c)
	if err != nil {
		return b.callbackFailure(c, err)
	}
	if !ok {
		return b.taskMissing(c)
	}
	if err := b.store.DeleteTask(ctx, task.ID); err != nil {
		return b.callbackFailure(c, err)
	}
	_ = callbacks.Answer(c, &tele.CallbackResponse{Text: textTaskDeleted, ShowAlert: true})
	return b.onMainMenu(c)
}

func (b *Bot) onDeleteCompleted(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	ownerID, ok, err := b.owner(ctx, c)
	if err != nil || !ok {
		return b.callbackFailure(c, err)
	}
	n, err := b.store.DeleteCompletedTasks(ctx, ownerID)
	if err != nil {
		return b.callbackFailure(c, err)
	}
	_ = callbacks.Answer(c, &tele.CallbackResponse{Text: deletedCompletedText(n), ShowAlert: true})
	return b.onMainMenu(c)
}

func (b *Bot) owner(ctx context.Context, c tele.Context) (int64, bool, error) {
	return b.store.FindUserIDByTelegramID(ctx, senderID(c))
}

// ownedTask loads the task named by the callback data. Tasks of other users
// are reported as missing.
func (b *Bot) ownedTask(c tele.Context) (storage.Task, bool, error) {
	ctx := tghelpers.BuildContext(c)
	_, taskID, err := callbackData.Parse(callbacks.Data(c))
	if err != nil {
		return storage.Task{}, false, nil
	}
	ownerID, ok, err := b.owner(ctx, c)
	if err != nil || !ok {
		return storage.Task{}, false, err
	}
	task, ok, err := b.store.GetTask(ctx, taskID)
	if err != nil || !ok {
		return storage.Task{}, false, err
	}
	if task.OwnerID != ownerID {
		logger.Warn(ctx, "service.tasks", "task.foreign",
			slog.Int64("task_id", taskID),
			slog.Int64("owner_id", ownerID),
		)
		return storage.Task{}, false, nil
	}
	return task, true, nil
}

func (b *Bot) taskMissing(c tele.Context) error {
	_ = callbacks.Answer(c, &tele.CallbackResponse{Text: textTaskMissing, ShowAlert: true})
	return b.onMainMenu(c)
}

// callbackFailure answers the button press with a generic failure and returns err
// for the handler summary. A nil err means the caller was not found as a user.
func (b *Bot) callbackFailure(c tele.Context, err error) error {
	if err == nil {
		return b.onNotRegistered(c)
	}
	_ = callbacks.Answer(c, &tele.CallbackResponse{Text: textFailure, ShowAlert: true})
	return err
}
