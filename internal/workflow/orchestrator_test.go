package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tower_bot/internal/matcher"
	"tower_bot/internal/models"
)

var testSettings = Settings{
	LoginURL:          "https://tower.test/wp-login.php",
	FloorFallbackURL:  "https://tower.test/floor/",
	ImagePromptSuffix: "in a surreal style",
}

func newFloor(number, name, author, body string) matcher.NewFloor {
	return matcher.NewFloor{
		Number: number,
		Name:   name,
		Item:   models.FeedItem{ID: "p1", Author: author, Body: body, CreatedAt: 1700000000},
	}
}

func TestDeriveUsername(t *testing.T) {
	assert.Equal(t, "janedoe42", DeriveUsername("Jane_Doe_42"))
	assert.Equal(t, "bob", DeriveUsername("bob"))
	assert.Equal(t, "", DeriveUsername("___"))
}

func TestDuplicateFloorOnlyReplies(t *testing.T) {
	feed, cms, images := newFakeFeed(), newFakeCMS(), &fakeImages{}
	cms.floors["42"] = true
	o := newTestOrchestrator(feed, cms, images, testSettings)

	outcome := o.HandleNewFloor(context.Background(), newFloor("42", "The Attic", "Jane_Doe_42", "dusty"))

	assert.Equal(t, OutcomeDuplicate, outcome)
	assert.Equal(t, []string{"FloorExists"}, cms.calls)
	assert.Equal(t, []string{duplicateFloorReply}, feed.replies["p1"])
	assert.Empty(t, feed.messages)
	assert.Empty(t, images.prompts)
}

func TestNewFloorCreatesAccountFloorAndImage(t *testing.T) {
	feed, cms, images := newFakeFeed(), newFakeCMS(), &fakeImages{}
	o := newTestOrchestrator(feed, cms, images, testSettings)

	outcome := o.HandleNewFloor(context.Background(), newFloor("42", "The Attic", "Jane_Doe_42", "dusty"))
	require.Equal(t, OutcomeCreated, outcome)

	acc, ok := cms.users["janedoe42"]
	require.True(t, ok)
	assert.Equal(t, "cat-gold-ring", cms.passwords[acc.ID])

	require.Len(t, cms.drafts, 1)
	assert.Equal(t, "The Attic", cms.drafts[0].Title)
	assert.Equal(t, "dusty", cms.drafts[0].Content)
	assert.Equal(t, "42", cms.drafts[0].Number)
	assert.Equal(t, acc.ID, cms.drafts[0].AuthorID)
	assert.True(t, cms.called("PatchMeta"))

	assert.Equal(t, []string{"dusty in a surreal style"}, images.prompts)
	assert.Equal(t, int64(77), cms.featured)

	assert.Equal(t, []string{accountCreatedSubject, floorCreatedSubject}, feed.subjects())
	assert.Contains(t, feed.messages[0].Text, "WordPress Username: janedoe42")
	assert.Contains(t, feed.messages[0].Text, "Password: cat-gold-ring")
	assert.Contains(t, feed.messages[1].Text, "View it here: https://tower.test/floor/x/")
	assert.Equal(t, []string{"Floor 'The Attic' has been created in the tower! View it here: https://tower.test/floor/x/"}, feed.replies["p1"])
}

func TestNewFloorReusesExistingAccount(t *testing.T) {
	feed, cms, images := newFakeFeed(), newFakeCMS(), &fakeImages{}
	cms.users["janedoe42"] = models.Account{ID: 9, Username: "janedoe42"}
	o := newTestOrchestrator(feed, cms, images, testSettings)

	o.HandleNewFloor(context.Background(), newFloor("42", "The Attic", "Jane_Doe_42", "dusty"))

	assert.False(t, cms.called("CreateUser"))
	assert.Equal(t, int64(9), cms.drafts[0].AuthorID)
	assert.Equal(t, []string{floorCreatedSubject}, feed.subjects())
}

func TestNewFloorPlaceholderContentAndFallbackLink(t *testing.T) {
	feed, cms, images := newFakeFeed(), newFakeCMS(), &fakeImages{}
	cms.link = ""
	o := newTestOrchestrator(feed, cms, images, testSettings)

	o.HandleNewFloor(context.Background(), newFloor("7", "Basement", "bob", ""))

	assert.Equal(t, "A new floor has been created: Basement", cms.drafts[0].Content)
	assert.Contains(t, feed.replies["p1"][0], "View it here: https://tower.test/floor/")
}

func TestNewFloorAccountFailureStillCreatesFloor(t *testing.T) {
	feed, cms, images := newFakeFeed(), newFakeCMS(), &fakeImages{}
	cms.createUserErr = errors.New("boom")
	o := newTestOrchestrator(feed, cms, images, testSettings)

	outcome := o.HandleNewFloor(context.Background(), newFloor("42", "The Attic", "jane", "dusty"))

	assert.Equal(t, OutcomeCreated, outcome)
	assert.Zero(t, cms.drafts[0].AuthorID)
	assert.Len(t, feed.replies["p1"], 1)
}

func TestNewFloorCreateFailureAbortsNotifications(t *testing.T) {
	feed, cms, images := newFakeFeed(), newFakeCMS(), &fakeImages{}
	cms.users["jane"] = models.Account{ID: 9}
	cms.createErr = errors.New("500")
	o := newTestOrchestrator(feed, cms, images, testSettings)

	outcome := o.HandleNewFloor(context.Background(), newFloor("42", "The Attic", "jane", "dusty"))

	assert.Equal(t, OutcomeFailed, outcome)
	assert.Empty(t, feed.replies)
	assert.Empty(t, feed.messages)
	assert.Empty(t, images.prompts)
}

func TestNewFloorExistenceCheckErrorTreatedAsAvailable(t *testing.T) {
	feed, cms, images := newFakeFeed(), newFakeCMS(), &fakeImages{}
	cms.existsErr = errors.New("timeout")
	o := newTestOrchestrator(feed, cms, images, testSettings)

	assert.Equal(t, OutcomeCreated, o.HandleNewFloor(context.Background(), newFloor("42", "A", "jane", "b")))
}

func TestNewFloorImageFailureDoesNotBlockNotifications(t *testing.T) {
	feed, cms, images := newFakeFeed(), newFakeCMS(), &fakeImages{err: errors.New("policy")}
	o := newTestOrchestrator(feed, cms, images, testSettings)

	outcome := o.HandleNewFloor(context.Background(), newFloor("42", "A", "jane", "b"))

	assert.Equal(t, OutcomeCreated, outcome)
	assert.False(t, cms.called("UploadImage"))
	assert.Len(t, feed.replies["p1"], 1)
}

func TestFeaturedImageStrategiesStopAtFirstSuccess(t *testing.T) {
	feed, cms, images := newFakeFeed(), newFakeCMS(), &fakeImages{}
	cms.failing["set-thumbnail"] = true
	o := newTestOrchestrator(feed, cms, images, testSettings)

	o.HandleNewFloor(context.Background(), newFloor("42", "A", "jane", "b"))

	assert.True(t, cms.called("set-thumbnail"))
	assert.True(t, cms.called("meta-write"))
	assert.False(t, cms.called("meta-replace"))
	assert.Equal(t, int64(77), cms.featured)
}

func TestFeaturedImageAllStrategiesFail(t *testing.T) {
	feed, cms, images := newFakeFeed(), newFakeCMS(), &fakeImages{}
	for _, name := range []string{"set-thumbnail", "meta-write", "meta-replace"} {
		cms.failing[name] = true
	}
	o := newTestOrchestrator(feed, cms, images, testSettings)

	outcome := o.HandleNewFloor(context.Background(), newFloor("42", "A", "jane", "b"))

	assert.Equal(t, OutcomeCreated, outcome)
	assert.True(t, cms.called("meta-replace"))
	assert.Zero(t, cms.featured)
}

func TestNewFloorNotifiesAdmin(t *testing.T) {
	feed, cms, images := newFakeFeed(), newFakeCMS(), &fakeImages{}
	settings := testSettings
	settings.AdminRecipient = "root88"
	o := newTestOrchestrator(feed, cms, images, settings)

	o.HandleNewFloor(context.Background(), newFloor("42", "The Attic", "", "dusty"))

	require.Len(t, feed.messages, 1)
	assert.Equal(t, "root88", feed.messages[0].To)
	assert.Contains(t, feed.messages[0].Text, "Created By: Unknown")
	assert.Contains(t, feed.messages[0].Text, "WordPress User ID: None")
}

func command(kind matcher.CommandKind, author string) matcher.Command {
	return matcher.Command{Kind: kind, Item: models.FeedItem{ID: "m1", Author: author}}
}

func TestCreateAccountWhenAlreadyExists(t *testing.T) {
	feed, cms := newFakeFeed(), newFakeCMS()
	cms.users["janedoe42"] = models.Account{ID: 9}
	o := newTestOrchestrator(feed, cms, &fakeImages{}, testSettings)

	outcome := o.Handle(context.Background(), command(matcher.CreateAccount, "Jane_Doe_42"))

	assert.Equal(t, OutcomeAccountExists, outcome)
	assert.False(t, cms.called("CreateUser"))
	require.Len(t, feed.messages, 1)
	assert.Equal(t, accountExistsSubject, feed.messages[0].Subject)
	assert.Contains(t, feed.messages[0].Text, "https://tower.test/wp-login.php")
}

func TestCreateAccountCreates(t *testing.T) {
	feed, cms := newFakeFeed(), newFakeCMS()
	o := newTestOrchestrator(feed, cms, &fakeImages{}, testSettings)

	outcome := o.Handle(context.Background(), command(matcher.CreateAccount, "jane"))

	assert.Equal(t, OutcomeAccountCreated, outcome)
	assert.Equal(t, []string{accountCreatedSubject}, feed.subjects())
}

func TestCreateAccountFailure(t *testing.T) {
	feed, cms := newFakeFeed(), newFakeCMS()
	cms.createUserErr = errors.New("exists")
	o := newTestOrchestrator(feed, cms, &fakeImages{}, testSettings)

	outcome := o.Handle(context.Background(), command(matcher.CreateAccount, "jane"))

	assert.Equal(t, OutcomeFailed, outcome)
	assert.Equal(t, []string{accountFailedSubject}, feed.subjects())
}

func TestResetPasswordWithoutAccount(t *testing.T) {
	feed, cms := newFakeFeed(), newFakeCMS()
	o := newTestOrchestrator(feed, cms, &fakeImages{}, testSettings)

	outcome := o.Handle(context.Background(), command(matcher.ResetPassword, "jane"))

	assert.Equal(t, OutcomeNotFound, outcome)
	assert.False(t, cms.called("UpdatePassword"))
	assert.Equal(t, []string{accountNotFoundSubject}, feed.subjects())
}

func TestResetPassword(t *testing.T) {
	feed, cms := newFakeFeed(), newFakeCMS()
	cms.users["jane"] = models.Account{ID: 9}
	o := newTestOrchestrator(feed, cms, &fakeImages{}, testSettings)

	outcome := o.Handle(context.Background(), command(matcher.ResetPassword, "jane"))

	assert.Equal(t, OutcomePasswordReset, outcome)
	assert.Equal(t, "cat-gold-ring", cms.passwords[9])
	require.Len(t, feed.messages, 1)
	assert.Equal(t, resetDoneSubject, feed.messages[0].Subject)
	assert.Contains(t, feed.messages[0].Text, "New Password: cat-gold-ring")
}

func TestResetPasswordFailure(t *testing.T) {
	feed, cms := newFakeFeed(), newFakeCMS()
	cms.users["jane"] = models.Account{ID: 9}
	cms.updateErr = errors.New("403")
	o := newTestOrchestrator(feed, cms, &fakeImages{}, testSettings)

	outcome := o.Handle(context.Background(), command(matcher.ResetPassword, "jane"))

	assert.Equal(t, OutcomeFailed, outcome)
	assert.Equal(t, []string{resetFailedSubject}, feed.subjects())
}

func TestCommandWithoutAuthorIgnored(t *testing.T) {
	feed, cms := newFakeFeed(), newFakeCMS()
	o := newTestOrchestrator(feed, cms, &fakeImages{}, testSettings)

	assert.Equal(t, OutcomeIgnored, o.Handle(context.Background(), command(matcher.CreateAccount, "")))
	assert.Empty(t, cms.calls)
}

func TestHandleNilIntent(t *testing.T) {
	o := newTestOrchestrator(newFakeFeed(), newFakeCMS(), &fakeImages{}, testSettings)
	assert.Equal(t, OutcomeIgnored, o.Handle(context.Background(), nil))
}
