package domain

// Transfer 轉帳請求
type Transfer struct {
	From   string
	To     string
	Amount int64
}

// IsSelf 來源與目標為同一帳戶
func (t Transfer) IsSelf() bool {
	return t.From == t.To
}

// LockIDs 回傳需要鎖定的帳號 ID，依字典序排列以避免死鎖
// 同一帳戶只回傳一次，自我轉帳不會重複加鎖
func (t Transfer) LockIDs() []string {
	ids := make([]string, 0, 2)
	switch {
	case t.IsSelf():
		ids = append(ids, t.From)
	case t.From < t.To:
		ids = append(ids, t.From, t.To)
	default:
		ids = append(ids, t.To, t.From)
	}
	return ids
}
