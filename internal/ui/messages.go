package ui

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Messages shown to the user. The English text doubles as the catalog key.
const (
	MsgSomethingWentWrong = "Something went wrong!"
	MsgResetting          = "Resetting settings, please wait..."
)

func init() {
	translations := map[language.Tag]map[string]string{
		language.German: {
			MsgSomethingWentWrong: "Etwas ist schiefgelaufen!",
			MsgResetting:          "Einstellungen werden zurückgesetzt, bitte warten...",
		},
		language.Spanish: {
			MsgSomethingWentWrong: "¡Algo salió mal!",
			MsgResetting:          "Restableciendo la configuración, espere...",
		},
		language.Russian: {
			MsgSomethingWentWrong: "Что-то пошло не так!",
			MsgResetting:          "Сброс настроек, пожалуйста, подождите...",
		},
	}

	for tag, msgs := range translations {
		for key, msg := range msgs {
			_ = message.SetString(tag, key, msg)
		}
	}
}
