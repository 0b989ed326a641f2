package main

func owner(player int) *int {
	return &player
}

func card(owner *int, hideOthers bool, text string, x, y float64) component {
	return component{
		Role:          TEXT,
		Selectability: true,
		IsOpened:      true,
		Owner:         owner,
		HideOthers:    hideOthers,
		Text:          text,
		X:             x,
		Y:             y,
		W:             100,
		H:             100,
	}
}

func counter(owner *int, number int64, x, y float64) component {
	return component{
		Role:     COUNTER,
		IsOpened: true,
		Owner:    owner,
		Number:   number,
		X:        x,
		Y:        y,
		W:        100,
		H:        100,
	}
}

// defaultSeed is the table existing clients expect. Ids follow slice order.
func defaultSeed() []component {
	return []component{
		card(owner(1), false, "プレイヤー1の操作カード", 32, 32),
		card(owner(2), false, "プレイヤー2の操作カード", 96, 32),
		card(nil, false, "みんな操作できるカード", 32, 96),
		card(owner(1), true, "プレイヤー1しか見えない", 96, 96),
		card(owner(2), true, "プレイヤー2しか見えない", 64, 64),
		counter(owner(1), 0, 160, 32),
		counter(owner(2), 0, 160, 96),
	}
}
