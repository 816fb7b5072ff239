package util

const (
	DateFormat = "2006-01-02"
	TimeFormat = "2006-01-02 15:04:05"
)

const (
	StorageLocal = "local"
	StorageMinio = "minio"
)

// 文件上传相关常量
const (
	MimePDF         = "application/pdf"
	MimeZip         = "application/zip"
	MimeOctetStream = "application/octet-stream"
	MimeDOCX        = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MimePPTX        = "application/vnd.openxmlformats-officedocument.presentationml.presentation"
	MimeDOC         = "application/msword"
	MimePPT         = "application/vnd.ms-powerpoint"
)

var (
	// 生成测验仅支持可提取文本的格式
	QuizDocumentExtensions = []string{".pdf", ".docx", ".pptx"}
	QuizDocumentMimes      = []string{MimePDF, MimeZip}

	// 课程资料额外允许旧版 Office 格式
	MaterialExtensions = []string{".pdf", ".docx", ".pptx", ".doc", ".ppt"}
	MaterialMimes      = []string{MimePDF, MimeZip, MimeOctetStream}
)
