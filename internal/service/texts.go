package service

import (
	"fmt"

	"github.com/mramrohaleem/Telegram-bot-Dawah/internal/models"
)

// Arabic user-facing texts. Kept in one place so the wording can be reviewed
// without touching the services that send them.
const (
	textInvalidURL        = "❌ مش قادر أتعامل مع الرابط ده. تأكد إنه من موقع مدعوم أو ابعته بشكل صحيح."
	textMissingDraft      = "❌ الطلب المؤقت غير موجود أو انتهت صلاحيته. ابعت الرابط من جديد."
	textUnsupportedSource = "❌ الموقع ده مش مدعوم حاليًا."
	textRateLimited       = "⏳ عدد الطلبات كبير. استنى شوية وجرب تاني."
	textMaintenance       = "🛠️ البوت في وضع الصيانة حاليًا. جرب تاني لاحقًا."
	textFailureSizeLimit  = "❌ فشل التحميل: حجم الملف أكبر من الحد المسموح."
	textFailureGeoBlock   = "❌ فشل التحميل بسبب حظر جغرافي للمحتوى."
	textFailureAuth       = "❌ فشل التحميل: الموقع يتطلب تسجيل دخول أو ملفات تعريف الارتباط."
	textFailureUnsupport  = "❌ فشل التحميل: المصدر غير مدعوم."
	textDeliveryExhausted = "تعذّر تسليم الملف للطلب #%d: %s"
	textDeliveryGeneric   = "خطأ غير معروف أثناء التسليم."
)

// DraftCancelledText confirms a discarded draft to the user
const DraftCancelledText = "تم إلغاء الطلب."

// FailureMessage renders the notification text for a failed job
func FailureMessage(job *models.Job) string {
	switch job.ErrorType {
	case models.ErrSizeLimit:
		return textFailureSizeLimit
	case models.ErrGeoBlock:
		return textFailureGeoBlock
	case models.ErrAuth:
		return textFailureAuth
	case models.ErrUnsupportedSource:
		return textFailureUnsupport
	default:
		return fmt.Sprintf("❌ فشل التحميل (النوع: %s). تواصل مع المشرف للمساعدة.", job.ErrorType)
	}
}

// DeliveryFailureMessage renders the notification for a completed job whose
// delivery attempts are exhausted.
func DeliveryFailureMessage(job *models.Job) string {
	reason := job.DeliveryLastError
	if reason == "" {
		reason = textDeliveryGeneric
	}
	return fmt.Sprintf(textDeliveryExhausted, job.ID, reason)
}
