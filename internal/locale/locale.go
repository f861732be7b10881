package locale

import "strings"

const (
	English = "en"
	Chinese = "zh"
)

// Messages holds every user-facing text of the bot.
type Messages struct {
	Start string
	Help  string

	ModeFusion string
	ModeDirect string

	ReferenceSaved   string
	ProductSaved     string
	BothImagesSaved  string
	DirectProduct    string
	DirectStyleSaved string
	DirectNeedsStyle string
	AlbumTooLarge    string
	DownloadFailed   string

	Analyzing      string
	AnalysisFailed string
	ReviewHeader   string
	ProductHeader  string
	StyleHeader    string
	PromptHeader   string
	NotesHeader    string
	ReviewHint     string

	Generating       string
	GenerationFailed string
	Complete         string
	Regenerating     string

	BackDone  string
	ResetDone string

	Busy              string
	NotAllowed        string
	NeedBothImages    string
	UnknownCommand    string
	ConfigurationHint string
	NotYourMenu       string

	ButtonGenerate   string
	ButtonRegenerate string
	ButtonBack       string
	ButtonReset      string

	StatusFormat string
	StateNames   map[string]string
}

var catalog = map[string]Messages{
	English: {
		Start: "AI Marketing Studio\n\n" +
			"Send a successful marketing image as the reference, then your product photo. " +
			"I will describe the product exactly, borrow only the photography style from the reference, and render a new image.\n\n" +
			"/help lists the commands.",
		Help: "Commands:\n" +
			"/fusion - reference + product fusion (default)\n" +
			"/direct - product photo + your own style text\n" +
			"/analyze - analyze both images\n" +
			"/generate [prompt] - render, optionally with an edited prompt\n" +
			"/regenerate - render the same prompt again\n" +
			"/back - return to the review\n" +
			"/reset - start over\n" +
			"/status - show where you are\n\n" +
			"Send two photos as an album to set reference and product in one go.",

		ModeFusion: "Fusion mode. Send the reference image first, then the product image.",
		ModeDirect: "Direct mode. Send the product image and describe the scene, style and mood in a text message.",

		ReferenceSaved:   "Reference image saved. Now send the product image.",
		ProductSaved:     "Product image saved.",
		BothImagesSaved:  "Both images are in. Send /analyze to get the fusion suggestion.",
		DirectProduct:    "Product image saved. Describe the style you want, then send /generate.",
		DirectStyleSaved: "Style saved. Send /generate when ready.",
		DirectNeedsStyle: "Describe the style you want in a text message first.",
		AlbumTooLarge:    "Please send at most two photos: reference first, product second.",
		DownloadFailed:   "Could not download the photo from Telegram. Please send it again.",

		Analyzing:      "Analyzing both images. This can take a minute...",
		AnalysisFailed: "Analysis failed:",
		ReviewHeader:   "Fusion suggestion",
		ProductHeader:  "Product description (immutable)",
		StyleHeader:    "Reference style",
		PromptHeader:   "Generation prompt",
		NotesHeader:    "Notes",
		ReviewHint:     "Send /generate to render, or /generate followed by your edited prompt.",

		Generating:       "Generating the marketing image. Please wait...",
		GenerationFailed: "Generation failed:",
		Complete:         "Done. /regenerate for another take, /back to edit the prompt, /reset to start over.",
		Regenerating:     "Regenerating with the same prompt...",

		BackDone:  "Back to the review. The analysis is kept.",
		ResetDone: "Everything cleared. Send a new reference image.",

		Busy:              "Still working on your previous request.",
		NotAllowed:        "That action is not available right now. Send /status to see where you are.",
		NeedBothImages:    "Send both the reference and the product image first.",
		UnknownCommand:    "Unknown command. Send /help.",
		ConfigurationHint: "The server has no API key configured. Please contact the operator.",
		NotYourMenu:       "These buttons belong to someone else.",

		ButtonGenerate:   "Generate",
		ButtonRegenerate: "Regenerate",
		ButtonBack:       "Back to review",
		ButtonReset:      "Start over",

		StatusFormat: "Mode: %s\nStep: %s",
		StateNames: map[string]string{
			"upload":     "upload",
			"analyzing":  "analyzing",
			"review":     "review",
			"generating": "generating",
			"complete":   "complete",
		},
	},
	Chinese: {
		Start: "AI Marketing Studio 智能营销素材生成工具\n\n" +
			"先发送一张爆款营销图作为参考，再发送你的产品图。" +
			"我会精确描述产品，只借用参考图的摄影风格，然后生成新的营销图。\n\n" +
			"/help 查看全部命令。",
		Help: "命令：\n" +
			"/fusion - 爆款融合（默认）\n" +
			"/direct - 图生图：产品图 + 你的风格描述\n" +
			"/analyze - 分析两张图片\n" +
			"/generate [提示词] - 生成图片，可附带修改后的提示词\n" +
			"/regenerate - 使用相同提示词重新生成\n" +
			"/back - 返回查看建议\n" +
			"/reset - 重新开始\n" +
			"/status - 查看当前步骤\n\n" +
			"以相册形式发送两张图片，可一次设置参考图和产品图。",

		ModeFusion: "爆款融合模式。请先发送参考图，再发送产品图。",
		ModeDirect: "图生图模式。请发送产品图，并用文字描述场景、风格、氛围。",

		ReferenceSaved:   "参考图已保存，请发送产品图。",
		ProductSaved:     "产品图已保存。",
		BothImagesSaved:  "两张图片已就绪，发送 /analyze 获取融合建议。",
		DirectProduct:    "产品图已保存。请描述你想要的效果，然后发送 /generate。",
		DirectStyleSaved: "风格描述已保存，准备好后发送 /generate。",
		DirectNeedsStyle: "请先用文字描述你想要的效果。",
		AlbumTooLarge:    "最多发送两张图片：第一张为参考图，第二张为产品图。",
		DownloadFailed:   "无法从 Telegram 下载图片，请重新发送。",

		Analyzing:      "正在分析素材，请稍候...",
		AnalysisFailed: "分析失败：",
		ReviewHeader:   "融合建议",
		ProductHeader:  "产品精确描述",
		StyleHeader:    "参考风格",
		PromptHeader:   "生成提示词",
		NotesHeader:    "注意事项",
		ReviewHint:     "发送 /generate 生成图片，或在 /generate 后附上修改后的提示词。",

		Generating:       "正在生成营销素材，请耐心等待...",
		GenerationFailed: "生成失败：",
		Complete:         "完成。/regenerate 重新生成，/back 返回编辑，/reset 重新开始。",
		Regenerating:     "正在使用相同提示词重新生成...",

		BackDone:  "已返回查看建议，分析结果已保留。",
		ResetDone: "已全部清空，请发送新的参考图。",

		Busy:              "上一个请求仍在处理中。",
		NotAllowed:        "当前步骤无法执行该操作，发送 /status 查看当前步骤。",
		NeedBothImages:    "请先发送参考图和产品图。",
		UnknownCommand:    "未知命令，发送 /help 查看帮助。",
		ConfigurationHint: "服务器未配置 API 密钥，请联系管理员。",
		NotYourMenu:       "这些按钮不属于你。",

		ButtonGenerate:   "生成图片",
		ButtonRegenerate: "重新生成",
		ButtonBack:       "返回查看建议",
		ButtonReset:      "重新开始",

		StatusFormat: "模式：%s\n步骤：%s",
		StateNames: map[string]string{
			"upload":     "上传素材",
			"analyzing":  "分析中",
			"review":     "融合建议",
			"generating": "生成中",
			"complete":   "生成结果",
		},
	},
}

// For returns the messages for code, falling back to English.
func For(code string) Messages {
	if m, ok := catalog[normalize(code)]; ok {
		return m
	}
	return catalog[English]
}

func Supported(code string) bool {
	_, ok := catalog[normalize(code)]
	return ok
}

func (m Messages) StateName(state string) string {
	if name, ok := m.StateNames[state]; ok {
		return name
	}
	return state
}

func normalize(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if i := strings.IndexAny(code, "-_"); i > 0 {
		code = code[:i]
	}
	return code
}
