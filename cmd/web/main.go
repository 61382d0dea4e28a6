// @title           DocVault API
// @version         1.0
// @description     Хранение документов с тарифами, оплачиваемыми через MTN MoMo и Stripe.
// @BasePath        /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

package main

import "docvault_backend/internal/app"

func main() {
	app.Run()
}
