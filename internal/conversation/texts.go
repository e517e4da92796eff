package conversation

import "fmt"

// User-facing texts emitted by the flows.
const (
	TextRegistrationWelcome = "Hi! 🎉 This is your personal task manager.\n" +
		"To start using the bot, please complete a short registration. " +
		"It takes less than a minute. 😊\n\nPlease enter your name:"
	TextAskName           = "Please enter your name:"
	TextAskLogin          = "Please come up with a unique login (Latin letters, digits, '.' and '_'):"
	TextLoginTaken        = "This login is already taken. Please choose another one:"
	TextAlreadyRegistered = "You are already registered."
	TextTaskWelcome       = "Let's create a new task!\nPlease enter the task name:"
	TextAskTaskName       = "Please enter the task name:"
	TextAskDescription    = "Please enter the task description:"
	TextTaskCreated       = "Task created successfully!"
	TextOwnerMissing      = "Your account was not found. Send /start to register."
	TextGenericFailure    = "Something went wrong. Please try again later."
	TextCancelled         = "Cancelled."
	TextNothingToCancel   = "There is nothing to cancel."
)

func registeredText(name, login string) string {
	return fmt.Sprintf("Congratulations, %s!\nYou are registered. 🎉\nYour login: %s", name, login)
}

func repromptText(reason, prompt string) string {
	if reason == "" {
		return prompt
	}
	return reason + "\n" + prompt
}
