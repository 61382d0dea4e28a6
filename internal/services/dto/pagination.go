package dto

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// NormalizePage приводит page/pageSize к допустимым значениям и возвращает offset
func NormalizePage(page, pageSize int) (int, int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return page, pageSize, (page - 1) * pageSize
}
