package util

const (
	DateFormat = "2006-01-02"
	TimeFormat = "2006-01-02 15:04:05"
)

const (
	StorageLocal = "local"
	StorageMinio = "minio"
	StorageOSS   = "oss"
)

// 项目评审流程相关常量
const (
	StepsPerProject         = 15
	DefaultStepTimerMinutes = 30

	MaxStepFiles        = 10
	MaxCommentFiles     = 5
	StepFileSizeLimitMB = 100
	DocumentSizeLimitMB = 10
)

// 允许上传的文件类型
var (
	ProjectDocumentMimeTypes = []string{
		"application/pdf",
		"text/plain",
		"application/msword",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	}

	StepFileMimeTypes = []string{
		"application/pdf",
		"text/plain",
		"image/",
		"application/msword",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"application/vnd.ms-excel",
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		"application/zip",
	}
)
