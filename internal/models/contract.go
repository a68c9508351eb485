package models

type Contract struct {
	ID           ID     `json:"id"`
	Code         string `json:"code"`
	TotalRevenue int64  `json:"total_revenue"`
}
