package workflow

import (
	"fmt"

	"tower_bot/internal/matcher"
	"tower_bot/internal/models"
)

const (
	duplicateFloorReply = "Sorry, that floor has already been claimed. You can create a room on that floor if you like."

	floorCreatedSubject    = "Your Floor Has Been Created"
	adminSummarySubject    = "New Floor Created"
	accountCreatedSubject  = "Your Spiral Tower Account"
	accountExistsSubject   = "Account Already Exists"
	accountFailedSubject   = "Account Creation Failed"
	accountNotFoundSubject = "Account Not Found"
	resetDoneSubject       = "Password Reset Complete"
	resetFailedSubject     = "Password Reset Failed"

	accountFailedMessage = "Sorry, there was an error creating your account on The Spiral Tower.\n\n" +
		"This might be because:\n" +
		"- You already have an account (try 'Reset Password' instead)\n" +
		"- There was a technical issue\n\n" +
		"Please try again later or contact the administrator if the problem persists."

	resetFailedMessage = "Sorry, there was an error resetting your password on The Spiral Tower. " +
		"Please try again later or contact the administrator."
)

func placeholderContent(name string) string {
	return "A new floor has been created: " + name
}

func floorCreatedReply(name, link string) string {
	return fmt.Sprintf("Floor '%s' has been created in the tower! View it here: %s", name, link)
}

func floorCreatedMessage(floor matcher.NewFloor, link string) string {
	return fmt.Sprintf("Your floor '%s' (number %s) has been successfully created on The Spiral Tower.\n\n"+
		"View it here: %s", floor.Name, floor.Number, link)
}

func adminSummaryMessage(floor matcher.NewFloor, account models.Account, link string) string {
	author := floor.Item.Author
	if author == "" {
		author = "Unknown"
	}
	userID := "None"
	if account.ID > 0 {
		userID = fmt.Sprint(account.ID)
	}
	if link == "" {
		link = "Not available"
	}
	return fmt.Sprintf("A new floor was created on The Spiral Tower:\n\n"+
		"Floor Number: %s\nTitle: %s\nCreated By: %s\nWordPress User ID: %s\n\nLink: %s",
		floor.Number, floor.Name, author, userID, link)
}

func accountCreatedMessage(handle, username, password, loginURL string) string {
	return fmt.Sprintf("Hello! Your account has been created on The Spiral Tower.\n\n"+
		"Reddit Username: %s\nWordPress Username: %s\nPassword: %s\n\n"+
		"You can log in at %s\n\n"+
		"Note: Your WordPress username has underscores removed as they're not allowed.\n\n"+
		"You now have author privileges on the site and can create new content!",
		handle, username, password, loginURL)
}

func accountExistsMessage(username, loginURL string) string {
	return fmt.Sprintf("Hello! You already have an account on The Spiral Tower.\n\n"+
		"Username: %s\n\n"+
		"If you've forgotten your password, please send me a private message with 'Reset Password' as the subject or message body.\n\n"+
		"You can log in at %s", username, loginURL)
}

func accountNotFoundMessage(loginURL string) string {
	return fmt.Sprintf("Hello! You don't appear to have an account on The Spiral Tower yet.\n\n"+
		"To create an account, please send me a private message with 'Create Account' as the subject or message body.\n\n"+
		"Once you have an account, you can log in at %s", loginURL)
}

func resetDoneMessage(username, password, loginURL string) string {
	return fmt.Sprintf("Your password has been reset on The Spiral Tower.\n\n"+
		"Username: %s\nNew Password: %s\n\n"+
		"You can log in at %s\n\n"+
		"Please consider changing your password after logging in for security.",
		username, password, loginURL)
}
