package dialogue

import "fmt"

// Shared callback identifiers understood by the conversation layer.
const (
	CallbackBackToMain     = "back_to_main"
	CallbackSessionResume  = "session_resume"
	CallbackSessionDiscard = "session_discard"
)

// BackToMainButton returns to the main menu.
func BackToMainButton() Button {
	return Btn("🔙 بازگشت", CallbackBackToMain)
}

// StartOver is the render for a StateNotFoundError.
func StartOver() Render {
	return Text("❌ خطا: وضعیت یافت نشد. لطفاً دوباره شروع کنید.").WithRow(BackToMainButton())
}

// Denied is the render for an AuthorizationError.
func Denied() Render {
	return Text("❌ شما نمی‌توانید از این بخش استفاده کنید.").WithRow(BackToMainButton())
}

// Invalid prefixes a validation hint onto the re-prompt of the current step.
func Invalid(hint string, current Render) Render {
	current.Text = hint + "\n\n" + current.Text
	return current
}

// StoreFailed is the retryable render for a PersistenceError.
func StoreFailed(retry, cancel Button) Render {
	return Text("❌ خطا در ثبت گزارش. لطفاً دوباره تلاش کنید.").WithRow(retry, cancel)
}

// Conflict asks the user to keep or discard the dialogue already in progress.
func Conflict(activeTitle string) Render {
	return Text(fmt.Sprintf("⚠️ شما یک فرایند نیمه‌تمام دارید: %s\n\nمی‌خواهید ادامه دهید یا آن را کنار بگذارید؟", activeTitle)).
		WithRow(Btn("▶️ ادامه", CallbackSessionResume)).
		WithRow(Btn("🗑️ کنار گذاشتن و شروع جدید", CallbackSessionDiscard))
}

// Cancelled acknowledges a cancelled dialogue.
func Cancelled() Render {
	return Text("❌ عملیات لغو شد.").WithRow(BackToMainButton())
}

// Expired is the render for a button nothing owns any more.
func Expired() Render {
	return Text("⚠️ این دکمه دیگر فعال نیست.").WithRow(BackToMainButton())
}
