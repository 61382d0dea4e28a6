package contextkeys

// Используем кастомный тип, чтобы избежать коллизий
type contextKey string

// DBContextKey - ключ, по которому хранится *gorm.DB (в context запроса или gin.Context)
const DBContextKey = contextKey("db")

// UserIDKey - ключ gin.Context с ID аутентифицированного пользователя
const UserIDKey = "userID"
