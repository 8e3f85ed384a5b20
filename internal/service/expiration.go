package service

import (
	"time"
)

// DateLayout 资料目录中 expirationDate 的格式
const DateLayout = "2006-01-02"

// NextExpiration 计算购买后的新到期日（只看日期，不看时刻）。
// 当前为 Pro 且到期日严格晚于今天时在原到期日上叠加，否则从今天开始计算。
func NextExpiration(current *time.Time, isPro bool, months int, now time.Time) time.Time {
	today := truncateDate(now, now.Location())

	base := today
	if isPro && current != nil {
		cur := truncateDate(*current, now.Location())
		if cur.After(today) {
			base = cur
		}
	}

	if months <= 0 {
		return base
	}
	return AddMonths(base, months)
}

// AddMonths 加 n 个月，目标月份没有对应日期时取该月最后一天（1/31 + 1 = 2/28）
func AddMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, t.Location())
	if last := daysIn(first); d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// ParseExpirationDate 解析到期日，空串或无法解析时返回 nil。
// 返回值是 UTC 零点的日期，调用方再换算到业务时区。
func ParseExpirationDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	if t, err := time.Parse(DateLayout, s); err == nil {
		return &t
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		y, m, d := t.Date()
		date := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		return &date
	}
	return nil
}

// ExpirationCalculator 在业务时区内做日期归一化
type ExpirationCalculator struct {
	loc *time.Location
	now func() time.Time
}

func NewExpirationCalculator(loc *time.Location) *ExpirationCalculator {
	if loc == nil {
		loc = time.UTC
	}
	return &ExpirationCalculator{
		loc: loc,
		now: time.Now,
	}
}

// Today 业务时区的今天零点
func (c *ExpirationCalculator) Today() time.Time {
	return truncateDate(c.now(), c.loc)
}

// Next 根据资料目录中的当前状态计算新到期日，返回 YYYY-MM-DD
func (c *ExpirationCalculator) Next(p ProfileState, months int) string {
	var current *time.Time
	if parsed := ParseExpirationDate(p.ExpirationDate); parsed != nil {
		y, m, d := parsed.Date()
		local := time.Date(y, m, d, 0, 0, 0, 0, c.loc)
		current = &local
	}
	return NextExpiration(current, p.IsPro, months, c.Today()).Format(DateLayout)
}

// ProfileState 计算到期日所需的订阅状态
type ProfileState struct {
	IsPro          bool
	ExpirationDate string
}

func truncateDate(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

func daysIn(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location()).Day()
}
