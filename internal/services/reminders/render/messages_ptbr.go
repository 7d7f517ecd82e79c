package render

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func init() {
	lang := language.BrazilianPortuguese

	message.SetString(lang, keyNotificationTitle, "Lembrete de tarefa")
	message.SetString(lang, keyToastTitle, "Lembrete: %s")
}
