package notifications

import (
	"fmt"
	"strconv"
)

// The client renders notifications in Arabic; titles and bodies are kept
// server-side so every channel shows identical copy.

func formatIQD(amount int64) string {
	s := strconv.FormatInt(amount, 10)
	neg := false
	if len(s) > 0 && s[0] == '-' {
		neg = true
		s = s[1:]
	}
	for i := len(s) - 3; i > 0; i -= 3 {
		s = s[:i] + "," + s[i:]
	}
	if neg {
		s = "-" + s
	}
	return s + " د.ع"
}

func outbidMessage(title string, amount int64) (string, string) {
	return "تمت مزايدة أعلى منك",
		fmt.Sprintf("شخص ما زايد بمبلغ %s على \"%s\"", formatIQD(amount), title)
}

func newBidMessage(title string, amount int64) (string, string) {
	return "مزايدة جديدة على منتجك",
		fmt.Sprintf("مزايدة جديدة بمبلغ %s على \"%s\"", formatIQD(amount), title)
}

func auctionWonMessage(title string, amount int64) (string, string) {
	return "مبروك! فزت بالمزاد 🎉",
		fmt.Sprintf("فزت بالمزاد على \"%s\" بمبلغ %s", title, formatIQD(amount))
}

func auctionLostMessage(title string, amount int64) (string, string) {
	return "انتهى المزاد",
		fmt.Sprintf("انتهى المزاد على \"%s\" ولم تفز. المزايدة الفائزة كانت %s", title, formatIQD(amount))
}

func auctionSoldMessage(title string, amount int64) (string, string) {
	return "تم بيع منتجك في المزاد! 🎉",
		fmt.Sprintf("تم بيع \"%s\" بمبلغ %s", title, formatIQD(amount))
}

func auctionNoBidsMessage(title string) (string, string) {
	return "انتهى المزاد بدون مزايدات",
		fmt.Sprintf("انتهى المزاد على \"%s\" بدون أي مزايدات. يمكنك إعادة عرض المنتج.", title)
}

func orderDeliveredMessage(title string) (string, string) {
	return "تم توصيل طلبك",
		fmt.Sprintf("تم توصيل طلبك \"%s\" بنجاح", title)
}

func orderReturnedMessage(title string) (string, string) {
	return "تم إرجاع الطلب",
		fmt.Sprintf("تم إرجاع الطلب \"%s\" إليك", title)
}

func orderCancelledMessage(title string) (string, string) {
	return "تم إلغاء الطلب",
		fmt.Sprintf("تم إلغاء الطلب \"%s\"", title)
}

func deliveryNoAnswerMessage(title string) (string, string) {
	return "لم نتمكن من الوصول إليك",
		fmt.Sprintf("حاول المندوب توصيل طلبك \"%s\" ولم يتم الرد. يرجى إعادة جدولة التوصيل خلال 24 ساعة.", title)
}

func settlementCreatedMessage(amount int64) (string, string) {
	return "تمت تسوية البيع",
		fmt.Sprintf("تمت إضافة %s إلى محفظتك. ستصبح متاحة بعد فترة الحجز.", formatIQD(amount))
}

func payoutPaidMessage(amount int64) (string, string) {
	return "تم دفع مستحقاتك",
		fmt.Sprintf("تم تحويل %s إليك", formatIQD(amount))
}

func returnRequestedMessage(title string) (string, string) {
	return "طلب إرجاع جديد",
		fmt.Sprintf("تم إنشاء طلب إرجاع لطلبك \"%s\"", title)
}

func returnApprovedMessage(title string) (string, string) {
	return "تمت الموافقة على طلب الإرجاع",
		fmt.Sprintf("تمت الموافقة على إرجاع \"%s\". سيتم معالجة المبلغ المسترجع قريباً.", title)
}

func returnRejectedMessage(title string) (string, string) {
	return "تم رفض طلب الإرجاع",
		fmt.Sprintf("بعد المراجعة، تم رفض طلب إرجاع \"%s\"", title)
}
