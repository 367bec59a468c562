// Package services – buyer-facing message templates.
//
// Texts are deliberately plain so the chat front end can localize or restyle
// them; the reconciler only cares that each lifecycle step sends something.
package services

import "fmt"

const (
	// qrCaptionFormat accompanies the QR image on the creation path.
	qrCaptionFormat = "Your payment is ready. You have %d minutes to complete the PIX. Scan the QR code or use the copy & paste code below."

	// copyPasteFormat delivers the PIX copy & paste payload as text.
	copyPasteFormat = "Copy & paste code:\n%s"

	// firstReminderText fires when an order crosses the reminder threshold.
	firstReminderText = "Your payment has not been credited yet. Approval usually takes 10 to 60 seconds after the payment is made."

	// expiredText fires on the expiry path, before the order is removed.
	expiredText = "We noticed you generated a payment but never completed the purchase. Your order has expired. Start a new purchase whenever you are ready and we will hold a discounted price for you."

	// approvedText confirms fulfillment.
	approvedText = "Your payment was approved! Thank you for your purchase."

	// defaultAccessText delivers the purchased access. Deployments override
	// this with their own invite links.
	defaultAccessText = "Here is your access 👇\n(configure ACCESS_MESSAGE with your invite links)"
)

func qrCaption(windowMinutes int) string {
	return fmt.Sprintf(qrCaptionFormat, windowMinutes)
}

func copyPasteText(code string) string {
	return fmt.Sprintf(copyPasteFormat, code)
}
