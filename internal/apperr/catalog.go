package apperr

import (
	"fmt"

	"golang.org/x/text/language"
)

var supported = []language.Tag{language.English, language.Japanese}

var matcher = language.NewMatcher(supported)

var catalog = map[language.Tag]map[string]string{
	language.English: {
		CodeInternal:                 "An unexpected error occurred.",
		CodeInvalidRequest:           "The request is invalid: %v",
		CodeUnauthenticated:          "Authentication is required.",
		CodeNotAMember:               "You are not a member of this community.",
		CodeInsufficientRole:         "Your role does not allow this action.",
		CodeNotFound:                 "The requested resource was not found.",
		CodeUsernameTaken:            "This username is already taken in the community.",
		CodeAlreadyShared:            "The profile is already shared with this user.",
		CodeSlugTaken:                "This community slug is already taken.",
		CodeOwnerConflict:            "The community already has an owner.",
		CodeDuplicate:                "The resource already exists.",
		"domain_taken":               "This domain is already used by another community.",
		"invalid_credentials":        "Email or password is incorrect.",
		"email_taken":                "An account with this email already exists.",
		"community_mismatch":         "The session belongs to a different community.",
		"missing_host":               "The request host could not be determined.",
		"unknown_host":               "The request host does not belong to this platform.",
		"community_not_found":        "The community was not found.",
		"already_member":             "You are already a member of this community.",
		"application_pending":        "You already have a pending application.",
		"application_not_pending":    "The application is not pending.",
		"application_not_reviewed":   "The application has not been reviewed.",
		"recruiting_closed":          "The community is not accepting applications now.",
		"invalid_attachment":         "An attachment is not one of your uploaded images.",
		"owner_cannot_leave":         "The owner cannot leave the community. Transfer ownership first.",
		"owner_must_transfer":        "Ownership can only change by transferring it to another member.",
		"cannot_remove_owner":        "The owner cannot be removed.",
		"cannot_revoke_owner":        "The community owner's approval cannot be revoked.",
		"target_not_member":          "The target user is not an active member.",
		"primary_not_shareable":      "A primary profile cannot be shared.",
		"grantee_not_staff":          "Profiles can only be shared with moderators and the owner.",
		"cannot_remove_last_owner":   "The last owner of a profile cannot be removed.",
		"share_not_found":            "The profile is not shared with this user.",
		"primary_not_deletable":      "A primary profile cannot be deleted.",
		"last_profile":               "You must keep at least one active profile.",
		"profile_inactive":           "The profile is not active.",
		"profile_muted":              "The profile is muted.",
		"cannot_mute_self":           "You cannot mute your own profile.",
		"already_muted":              "The profile is already muted.",
		"not_muted":                  "The profile is not muted.",
		"no_moderator_profile":       "You need an active profile in this community to moderate.",
		"invalid_parent":             "The parent post does not exist.",
		"invalid_board":              "The board does not exist.",
		"schedule_in_past":           "The scheduled time must be in the future.",
		"invalid_participants":       "The conversation participants are invalid.",
		"unsupported_media_type":     "Only JPEG, PNG, GIF and WebP images are accepted.",
		"file_too_large":             "The file exceeds the maximum size of %d bytes.",
		"invalid_metric":             "Unknown metric %q.",
		"invalid_interval":           "Unknown interval %q.",
		"domain_not_set":             "No custom domain is configured.",
		"domain_verification_failed": "The DNS TXT record %q was not found.",
		"export_not_ready":           "The export has not completed.",
		"rate_limited":               "Too many requests. Please retry later.",
		"invalid_role":               "Unknown role.",
		"not_profile_owner":          "Only an owner of the profile can do this.",
		"reply_not_schedulable":      "Replies cannot be scheduled.",
		"cannot_pin_reply":           "Only top-level posts can be pinned.",
		"sso_disabled":               "Single sign-on is not configured.",
		"invalid_sso_state":          "The sign-in attempt expired. Please try again.",
	},
	language.Japanese: {
		CodeInternal:             "予期しないエラーが発生しました。",
		CodeInvalidRequest:       "リクエストが不正です: %v",
		CodeUnauthenticated:      "認証が必要です。",
		CodeNotAMember:           "このコミュニティのメンバーではありません。",
		CodeInsufficientRole:     "この操作を行う権限がありません。",
		CodeNotFound:             "リソースが見つかりません。",
		CodeUsernameTaken:        "このユーザー名はコミュニティ内で既に使われています。",
		CodeAlreadyShared:        "このプロフィールは既にこのユーザーと共有されています。",
		CodeSlugTaken:            "このスラッグは既に使われています。",
		CodeOwnerConflict:        "このコミュニティには既にオーナーがいます。",
		CodeDuplicate:            "既に存在します。",
		"invalid_credentials":    "メールアドレスまたはパスワードが正しくありません。",
		"community_not_found":    "コミュニティが見つかりません。",
		"already_member":         "既にこのコミュニティのメンバーです。",
		"application_pending":    "審査中の申請があります。",
		"recruiting_closed":      "現在このコミュニティは募集を行っていません。",
		"owner_cannot_leave":     "オーナーは退会できません。先にオーナー権限を移譲してください。",
		"owner_must_transfer":    "オーナーの変更は他のメンバーへの移譲でのみ可能です。",
		"primary_not_shareable":  "メインプロフィールは共有できません。",
		"grantee_not_staff":      "プロフィールはモデレーターとオーナーにのみ共有できます。",
		"profile_muted":          "このプロフィールはミュートされています。",
		"unsupported_media_type": "JPEG、PNG、GIF、WebP の画像のみアップロードできます。",
		"file_too_large":         "ファイルサイズが上限 (%d バイト) を超えています。",
		"rate_limited":           "リクエストが多すぎます。しばらくしてから再試行してください。",
	},
}

// Localize returns the message for code in the best language for the
// Accept-Language header, falling back to English and then to the code itself
func Localize(code, acceptLanguage string, params ...interface{}) string {
	tag, _ := language.MatchStrings(matcher, acceptLanguage)
	base, _ := tag.Base()

	msg, ok := "", false
	for _, t := range supported {
		if b, _ := t.Base(); b == base {
			msg, ok = catalog[t][code]
			break
		}
	}
	if !ok {
		if msg, ok = catalog[language.English][code]; !ok {
			return code
		}
	}
	if len(params) > 0 {
		return fmt.Sprintf(msg, params...)
	}
	return msg
}
