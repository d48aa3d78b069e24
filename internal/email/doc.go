// Package email entrega los OOB codes y códigos SMS que emite el emulador.
// Por defecto solo se imprimen en el log; con SMTP configurado los mails
// además salen por go-mail hacia un relay local (MailHog, Mailpit...).
package email
