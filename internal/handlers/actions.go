package handlers

// Action names attached to handler log lines.
const (
	ActionCommandStart    = "command_start"
	ActionCommandHelp     = "command_help"
	ActionCommandStats    = "command_stats"
	ActionCommandReset    = "command_reset"
	ActionCommandList     = "command_list"
	ActionCommandGenerate = "command_generate"
	ActionCommandPost     = "command_post"
	ActionCommandMyID     = "command_myid"
	ActionUploadPhoto     = "upload_photo"
	ActionUploadAlbum     = "upload_album"
	ActionGenerateCaption = "generate_caption"
	ActionAccessDenied    = "access_denied"
	ActionCallbackQuery   = "callback_query"
)
