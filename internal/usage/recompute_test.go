package usage

import (
	"testing"
	"time"

	"github.com/lumichat/billing/internal/models"
	"github.com/lumichat/billing/internal/pricing"

	"gorm.io/gorm"
)

const testModelID = "openai/gpt-4o-mini"

func newTestRecomputer(conn *gorm.DB) *Recomputer {
	return NewRecomputer(conn, pricing.NewGormCatalog(conn), "test-secret")
}

func seedChatTurn(t *testing.T, conn *gorm.DB, userID uint64, promptTokens, completionTokens int64) (userMsgID, assistantMsgID string) {
	t.Helper()
	userMsgID = "user-msg-1"
	assistantMsgID = "assistant-msg-1"

	uid := userID
	userMsg := models.Message{
		PublicID:    userMsgID,
		SessionID:   "session-1",
		UserID:      &uid,
		Role:        models.RoleUser,
		InputTokens: 0,
		CreatedAt:   time.Now().UTC(),
	}
	if errCreate := conn.Create(&userMsg).Error; errCreate != nil {
		t.Fatalf("seed user message: %v", errCreate)
	}

	assistantMsg := models.Message{
		PublicID:      assistantMsgID,
		SessionID:     "session-1",
		UserID:        &uid,
		Role:          models.RoleAssistant,
		ModelID:       testModelID,
		UserMessageID: &userMsgID,
		CompletionID:  "cmpl-1",
		InputTokens:   promptTokens,
		OutputTokens:  completionTokens,
		CreatedAt:     time.Now().UTC(),
	}
	if errCreate := conn.Create(&assistantMsg).Error; errCreate != nil {
		t.Fatalf("seed assistant message: %v", errCreate)
	}
	return userMsgID, assistantMsgID
}

func linkUserImages(t *testing.T, conn *gorm.DB, userMsgID string, n int) {
	t.Helper()
	if errDelete := conn.Where("message_id = ? AND source = ?", userMsgID, models.AttachmentSourceUser).
		Delete(&models.Attachment{}).Error; errDelete != nil {
		t.Fatalf("reset attachments: %v", errDelete)
	}
	for i := 0; i < n; i++ {
		att := models.Attachment{
			PublicID:  "att-" + userMsgID + "-" + string(rune('a'+i)),
			SessionID: "session-1",
			MessageID: &userMsgID,
			Status:    models.AttachmentStatusReady,
			Source:    models.AttachmentSourceUser,
			MimeType:  "image/png",
		}
		if errCreate := conn.Create(&att).Error; errCreate != nil {
			t.Fatalf("link attachment: %v", errCreate)
		}
	}
}

func TestRecomputeEndToEndHelloTurn(t *testing.T) {
	conn := openTestDB(t)
	seedModelPrice(t, conn, testModelID, "0.0000005", "0.0000015", "0.001", "0.01", "0")
	_, assistantID := seedChatTurn(t, conn, 42, 7, 1033)

	rec := newTestRecomputer(conn)
	if errRecompute := rec.Recompute(testCtx, assistantID); errRecompute != nil {
		t.Fatalf("recompute: %v", errRecompute)
	}

	row := loadCostRow(t, conn, assistantID)
	if row == nil {
		t.Fatal("cost row missing")
	}
	if want := mustDecimal(t, "0.000004"); !row.PromptCost.Equal(want) {
		t.Fatalf("prompt cost = %s, want %s", row.PromptCost, want)
	}
	if want := mustDecimal(t, "0.001550"); !row.CompletionCost.Equal(want) {
		t.Fatalf("completion cost = %s, want %s", row.CompletionCost, want)
	}
	if want := mustDecimal(t, "0.001554"); !row.TotalCost.Equal(want) {
		t.Fatalf("total cost = %s, want %s", row.TotalCost, want)
	}

	day := loadUsageDay(t, conn, UserOwner(42))
	if day == nil {
		t.Fatal("usage day missing")
	}
	if want := mustDecimal(t, "0.001554"); !day.EstimatedCost.Equal(want) {
		t.Fatalf("estimated cost = %s, want %s", day.EstimatedCost, want)
	}
}

func TestRecomputeIsIdempotent(t *testing.T) {
	conn := openTestDB(t)
	seedModelPrice(t, conn, testModelID, "0.0000005", "0.0000015", "0.001", "0.01", "0")
	_, assistantID := seedChatTurn(t, conn, 42, 7, 1033)

	rec := newTestRecomputer(conn)
	for i := 0; i < 3; i++ {
		if errRecompute := rec.Recompute(testCtx, assistantID); errRecompute != nil {
			t.Fatalf("recompute %d: %v", i, errRecompute)
		}
	}

	if n := countCostRows(t, conn); n != 1 {
		t.Fatalf("cost rows = %d, want 1", n)
	}
	day := loadUsageDay(t, conn, UserOwner(42))
	if want := mustDecimal(t, "0.001554"); !day.EstimatedCost.Equal(want) {
		t.Fatalf("estimated cost after repeats = %s, want %s", day.EstimatedCost, want)
	}
}

func TestRecomputeResolvesThroughUserMessage(t *testing.T) {
	conn := openTestDB(t)
	seedModelPrice(t, conn, testModelID, "0.0000005", "0.0000015", "0.001", "0.01", "0")
	userID, assistantID := seedChatTurn(t, conn, 42, 7, 1033)

	rec := newTestRecomputer(conn)
	if errRecompute := rec.Recompute(testCtx, userID); errRecompute != nil {
		t.Fatalf("recompute via user message: %v", errRecompute)
	}
	if row := loadCostRow(t, conn, assistantID); row == nil {
		t.Fatal("cost row missing after user-message recompute")
	}
}

func TestRecomputeNoAssistantMessageIsSilentNoop(t *testing.T) {
	conn := openTestDB(t)
	rec := newTestRecomputer(conn)

	if errRecompute := rec.Recompute(testCtx, "no-such-message"); errRecompute != nil {
		t.Fatalf("recompute: %v", errRecompute)
	}
	if n := countCostRows(t, conn); n != 0 {
		t.Fatalf("cost rows = %d, want 0", n)
	}
}

func TestRecomputeSkipsErroredAssistantMessage(t *testing.T) {
	conn := openTestDB(t)
	seedModelPrice(t, conn, testModelID, "0.0000005", "0.0000015", "0.001", "0.01", "0")

	uid := uint64(42)
	userMsgID := "user-msg-err"
	errored := models.Message{
		PublicID:      "assistant-msg-err",
		SessionID:     "session-1",
		UserID:        &uid,
		Role:          models.RoleAssistant,
		ModelID:       testModelID,
		UserMessageID: &userMsgID,
		HasError:      true,
		ErrorMessage:  "upstream timeout",
		CreatedAt:     time.Now().UTC(),
	}
	if errCreate := conn.Create(&errored).Error; errCreate != nil {
		t.Fatalf("seed errored message: %v", errCreate)
	}

	rec := newTestRecomputer(conn)
	if errRecompute := rec.Recompute(testCtx, userMsgID); errRecompute != nil {
		t.Fatalf("recompute: %v", errRecompute)
	}
	if n := countCostRows(t, conn); n != 0 {
		t.Fatalf("cost rows = %d, want 0", n)
	}
}

func TestRecomputeDeltaConvergesAcrossImageChanges(t *testing.T) {
	conn := openTestDB(t)
	seedModelPrice(t, conn, testModelID, "0", "0", "0.001", "0.01", "0")
	userID, assistantID := seedChatTurn(t, conn, 42, 0, 0)

	rec := newTestRecomputer(conn)
	// Image units move 0 -> 2 -> 3 -> 1; only the final state may matter.
	for _, n := range []int{0, 2, 3, 1} {
		linkUserImages(t, conn, userID, n)
		if errRecompute := rec.Recompute(testCtx, userID); errRecompute != nil {
			t.Fatalf("recompute with %d images: %v", n, errRecompute)
		}
	}

	row := loadCostRow(t, conn, assistantID)
	if row.ImageUnits != 1 {
		t.Fatalf("image units = %d, want 1", row.ImageUnits)
	}
	day := loadUsageDay(t, conn, UserOwner(42))
	if want := mustDecimal(t, "0.001"); !day.EstimatedCost.Equal(want) {
		t.Fatalf("estimated cost = %s, want %s", day.EstimatedCost, want)
	}
}

func TestRecomputeCapsInputImagesAtThree(t *testing.T) {
	conn := openTestDB(t)
	seedModelPrice(t, conn, testModelID, "0", "0", "0.001", "0.01", "0")
	userID, assistantID := seedChatTurn(t, conn, 42, 0, 0)

	linkUserImages(t, conn, userID, 5)
	rec := newTestRecomputer(conn)
	if errRecompute := rec.Recompute(testCtx, userID); errRecompute != nil {
		t.Fatalf("recompute: %v", errRecompute)
	}

	row := loadCostRow(t, conn, assistantID)
	if row.ImageUnits != 3 {
		t.Fatalf("image units = %d, want 3 (capped)", row.ImageUnits)
	}
	if want := mustDecimal(t, "0.003"); !row.InputImageCost.Equal(want) {
		t.Fatalf("input image cost = %s, want %s", row.InputImageCost, want)
	}
}

func TestRecomputeUnknownModelDegradesToZero(t *testing.T) {
	conn := openTestDB(t)
	_, assistantID := seedChatTurn(t, conn, 42, 7, 1033)

	rec := newTestRecomputer(conn)
	if errRecompute := rec.Recompute(testCtx, assistantID); errRecompute != nil {
		t.Fatalf("recompute: %v", errRecompute)
	}

	row := loadCostRow(t, conn, assistantID)
	if row == nil {
		t.Fatal("cost row missing")
	}
	if !row.TotalCost.IsZero() {
		t.Fatalf("total cost = %s, want 0 for unknown model", row.TotalCost)
	}
	// Zero delta must not create an aggregate row.
	if day := loadUsageDay(t, conn, UserOwner(42)); day != nil {
		t.Fatalf("usage day exists with cost %s, want none", day.EstimatedCost)
	}
}

func TestRecomputeDoesNotTouchMessageCounters(t *testing.T) {
	conn := openTestDB(t)
	seedModelPrice(t, conn, testModelID, "0.0000005", "0.0000015", "0.001", "0.01", "0")
	userID, _ := seedChatTurn(t, conn, 42, 7, 1033)

	owner := UserOwner(42)
	var userMsg, assistantMsg models.Message
	if errFind := conn.Where("role = ?", models.RoleUser).Take(&userMsg).Error; errFind != nil {
		t.Fatalf("load user message: %v", errFind)
	}
	if errFind := conn.Where("role = ?", models.RoleAssistant).Take(&assistantMsg).Error; errFind != nil {
		t.Fatalf("load assistant message: %v", errFind)
	}
	if errRecord := RecordMessageCreated(testCtx, conn, owner, &userMsg); errRecord != nil {
		t.Fatalf("record user message: %v", errRecord)
	}
	if errRecord := RecordMessageCreated(testCtx, conn, owner, &assistantMsg); errRecord != nil {
		t.Fatalf("record assistant message: %v", errRecord)
	}

	rec := newTestRecomputer(conn)
	linkUserImages(t, conn, userID, 2)
	for i := 0; i < 3; i++ {
		if errRecompute := rec.Recompute(testCtx, userID); errRecompute != nil {
			t.Fatalf("recompute: %v", errRecompute)
		}
	}

	day := loadUsageDay(t, conn, owner)
	if day.MessagesSent != 1 {
		t.Fatalf("messages sent = %d, want 1", day.MessagesSent)
	}
	if day.MessagesReceived != 1 {
		t.Fatalf("messages received = %d, want 1", day.MessagesReceived)
	}
	if day.InputTokens != 7 || day.OutputTokens != 1033 {
		t.Fatalf("token counters = %d/%d, want 7/1033", day.InputTokens, day.OutputTokens)
	}
}

func TestRecomputeAnonymousSessionOwner(t *testing.T) {
	conn := openTestDB(t)
	seedModelPrice(t, conn, testModelID, "0.0000005", "0.0000015", "0.001", "0.01", "0")

	userMsgID := "anon-user-msg"
	assistant := models.Message{
		PublicID:      "anon-assistant-msg",
		SessionID:     "anon-session",
		Role:          models.RoleAssistant,
		ModelID:       testModelID,
		UserMessageID: &userMsgID,
		InputTokens:   7,
		OutputTokens:  1033,
		CreatedAt:     time.Now().UTC(),
	}
	if errCreate := conn.Create(&assistant).Error; errCreate != nil {
		t.Fatalf("seed anonymous assistant message: %v", errCreate)
	}

	rec := newTestRecomputer(conn)
	if errRecompute := rec.Recompute(testCtx, assistant.PublicID); errRecompute != nil {
		t.Fatalf("recompute: %v", errRecompute)
	}

	owner := AnonOwner("test-secret", "anon-session")
	day := loadUsageDay(t, conn, owner)
	if day == nil {
		t.Fatal("anonymous usage day missing")
	}
	if day.OwnerKey == "anon-session" {
		t.Fatal("owner key stored unhashed")
	}
	if want := mustDecimal(t, "0.001554"); !day.EstimatedCost.Equal(want) {
		t.Fatalf("estimated cost = %s, want %s", day.EstimatedCost, want)
	}
}
