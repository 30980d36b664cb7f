package telegram

import (
	"github.com/go-telegram/bot/models"

	"github.com/vietddude/dexwatch/internal/indexing/emitter"
)

// Callback data. Wallet actions carry the wallet id after the prefix.
const (
	cbAddWallet   = "addNewDex"
	cbToggle      = "activateDex-"
	cbRename      = "renameDex-"
	cbDelete      = "deleteDex-"
	cbEditMin     = "editMin-"
	cbEditMax     = "editMax-"
	cbChangeToken = "changeTokenType-"
)

var walletActions = []string{cbToggle, cbRename, cbDelete, cbEditMin, cbEditMax, cbChangeToken}

func homeButtons() [][]emitter.Button {
	return [][]emitter.Button{
		{{Text: "📥 Add new DEX", Data: cbAddWallet}},
	}
}

func walletButtons(id string, active bool) [][]emitter.Button {
	toggle := "Activate"
	if active {
		toggle = "Deactivate"
	}
	return [][]emitter.Button{
		{{Text: toggle, Data: cbToggle + id}},
		{{Text: "Rename", Data: cbRename + id}, {Text: "Delete", Data: cbDelete + id}},
		{{Text: "Edit Min", Data: cbEditMin + id}, {Text: "Edit Max", Data: cbEditMax + id}},
		{{Text: "Change Token Type", Data: cbChangeToken + id}},
	}
}

// replyMarkup converts button rows to an inline keyboard; nil without buttons.
func replyMarkup(rows [][]emitter.Button) models.ReplyMarkup {
	var keyboard [][]models.InlineKeyboardButton
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		buttons := make([]models.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, models.InlineKeyboardButton{Text: b.Text, CallbackData: b.Data})
		}
		keyboard = append(keyboard, buttons)
	}
	if len(keyboard) == 0 {
		return nil
	}
	return &models.InlineKeyboardMarkup{InlineKeyboard: keyboard}
}
