package apperr

// Client-facing messages. The app is Korean-only.
const (
	MsgSchoolNameRequired = "학교 이름을 입력해주세요."
	MsgSchoolCodeRequired = "학교 코드를 입력해주세요."
	MsgRegionCodeRequired = "지역 코드를 입력해주세요."
	MsgYearRequired       = "년도를 입력해주세요."
	MsgMonthRequired      = "월을 입력해주세요."
	MsgGradeRequired      = "학년을 입력해주세요."
	MsgClassRequired      = "반을 입력해주세요."
	MsgTokenRequired      = "토큰을 입력해주세요."
	MsgTitleRequired      = "제목을 입력해주세요."
	MsgContentRequired    = "내용을 입력해주세요."
	MsgIDRequired         = "ID를 입력해주세요."
	MsgDateRequired       = "날짜를 입력해주세요."
	MsgTimeRequired       = "알림 시간을 입력해주세요."
	MsgKeywordsRequired   = "키워드를 하나 이상 입력해주세요."
	MsgInvalidTimeFormat  = "시간은 HH:MM 형식이어야 해요."
	MsgInvalidTimeHour    = "시간은 0~23 사이여야 해요."
	MsgInvalidTimeMinute  = "분은 0~59 사이여야 해요."

	MsgNoData             = "해당하는 데이터가 없습니다."
	MsgSchoolNotFound     = "학교를 찾을 수 없어요."
	MsgTimetableNotFound  = "시간표를 찾을 수 없어요."
	MsgTokenNotFound      = "토큰을 찾을 수 없어요."
	MsgTokenAlreadyExists = "이미 존재하는 토큰이에요."
	MsgNoticeNotFound     = "공지를 찾을 수 없어요."
	MsgUnknown            = "알 수 없는 오류가 발생했어요."
	MsgNotFoundRoute      = "존재하지 않는 경로예요."
	MsgInvalidBody        = "요청 본문이 올바르지 않아요."
	MsgUnauthorized       = "권한이 없습니다."
	MsgUpstreamDown       = "급식 정보를 불러오지 못했어요. 잠시 후 다시 시도해주세요."
	MsgTooManyRequests    = "요청이 너무 많아요. 잠시 후 다시 시도해주세요."
)
