package util

const (
	DateFormat = "2006-01-02"
	TimeFormat = "2006-01-02 15:04:05"
)

const (
	StorageLocal = "local"
	StorageMinio = "minio"
)

// gin.Context 中的键
const (
	ContextConfigKey = "config"
	ContextClaimsKey = "claims"
)

// 出站请求头
const (
	HeaderIdempotencyKey = "Idempotency-Key"
	HeaderAPIKey         = "X-API-Key"
)
