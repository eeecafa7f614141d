package lang

import "unicode"

// Language codes used across user-facing messages.
const (
	English = "en"
	Russian = "ru"
)

// cyrillicThreshold is the share of alphabetic runes that must be Cyrillic
// before a text is treated as Russian.
const cyrillicThreshold = 0.1

// Detect classifies text as Russian or English with a Cyrillic-ratio
// heuristic. This single heuristic governs every language-branched message in
// the workflow.
func Detect(text string) string {
	if text == "" {
		return English
	}

	var cyrillic, letters int
	for _, r := range text {
		if unicode.IsLetter(r) {
			letters++
			if unicode.Is(unicode.Cyrillic, r) {
				cyrillic++
			}
		}
	}

	if letters > 0 && float64(cyrillic)/float64(letters) > cyrillicThreshold {
		return Russian
	}
	return English
}

// Message keys for the catalog.
const (
	MsgCompletionQuestion = "completion_question"
	MsgTaskCompleted      = "task_completed"
	MsgRestart            = "restart"
	MsgClosing            = "closing"
	MsgCouldNotComplete   = "could_not_complete"
	MsgInternalError      = "internal_error"
	MsgOfferSteps         = "offer_steps"
	MsgCompatChoices      = "compat_choices"
	MsgOutOfScope         = "out_of_scope"
	MsgReviewFrom         = "review_from"
)

var catalog = map[string]map[string]string{
	MsgCompletionQuestion: {
		English: "Did you manage to solve the task?",
		Russian: "Удалось ли решить задачу?",
	},
	MsgTaskCompleted: {
		English: "Great! Task completed. If you need help with anything else, just ask!",
		Russian: "Отлично! Задача выполнена. Если понадобится помощь, просто спросите!",
	},
	MsgRestart: {
		English: "Let's start over from the first step.",
		Russian: "Давайте начнём заново с первого шага.",
	},
	MsgClosing: {
		English: "Okay, feel free to ask if you need help!",
		Russian: "Хорошо, обращайтесь, если понадобится помощь!",
	},
	MsgCouldNotComplete: {
		English: "Sorry, I could not complete this request. Please try again.",
		Russian: "Извините, не удалось обработать запрос. Попробуйте ещё раз.",
	},
	MsgInternalError: {
		English: "Sorry, something went wrong. Please try again.",
		Russian: "Извините, произошла ошибка. Попробуйте ещё раз.",
	},
	MsgOfferSteps: {
		English: "Would you like me to walk you through this step by step? (yes/no)",
		Russian: "Хотите, я покажу это пошагово? (да/нет)",
	},
	MsgCompatChoices: {
		English: "You can try anyway, start a new task, or cancel. What would you like to do?",
		Russian: "Можно попробовать всё равно, начать новую задачу или отменить. Что вы выберете?",
	},
	MsgOutOfScope: {
		English: "I can only help with questions about Ableton Live. Please ask me something about working in Ableton.",
		Russian: "Я могу помочь только с вопросами по Ableton Live. Спросите меня о работе в Ableton.",
	},
	MsgReviewFrom: {
		English: "Let's take another look, starting from step %d.",
		Russian: "Давайте посмотрим ещё раз, начиная с шага %d.",
	},
}

// Message returns the catalog entry for a key in the detected language of
// text, falling back to English for unknown keys or languages.
func Message(key, text string) string {
	variants, ok := catalog[key]
	if !ok {
		return ""
	}
	if msg, ok := variants[Detect(text)]; ok {
		return msg
	}
	return variants[English]
}
